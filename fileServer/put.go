package fileserver

import (
	"net"

	"github.com/involk-secure-1609/lant/common"
	"github.com/involk-secure-1609/lant/helper"
)

func (fileServer *FileServer) handlePutRequest(payload []byte) (net.Buffers, error) {
	request, err := helper.PutRequestCodec{}.Decode(payload)
	if err != nil {
		return nil, err
	}
	response, err := fileServer.storeChunk(request)
	if err != nil {
		return nil, err
	}
	return helper.EncodePayload[common.PutResponse](helper.TextCodec[common.PutResponse]{}, common.PutResponseType, response)
}

// storeChunk writes the request data at its chunk offset and reports the new size of the file.
// A probe carries no data and only reports the size.
func (fileServer *FileServer) storeChunk(request common.PutRequest) (common.PutResponse, error) {
	if request.Meta.IsDone {
		return common.PutResponse{IsDone: true}, nil
	}

	remoteFilePath, err := helper.DestinationFile(fileServer.rootPath, request.Meta.RemoteDir, request.Meta.FileName)
	if err != nil {
		return common.PutResponse{}, err
	}

	remoteFile, err := helper.OpenChunkFile(remoteFilePath)
	if err != nil {
		return common.PutResponse{}, err
	}
	defer remoteFile.Close()

	if err := helper.WriteChunk(remoteFile, request.Meta.CurrChunkIndex, request.Data); err != nil {
		return common.PutResponse{}, err
	}

	info, err := remoteFile.Stat()
	if err != nil {
		return common.PutResponse{}, err
	}
	if len(request.Data) > 0 {
		fileServer.logger.Debugf("stored chunk %d of %s, %d bytes", request.Meta.CurrChunkIndex, remoteFilePath, len(request.Data))
	}
	return common.PutResponse{RemoteChunkSize: common.ChunkSizeFromLength(uint64(info.Size()))}, nil
}
