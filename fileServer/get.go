package fileserver

import (
	"net"
	"os"

	"github.com/involk-secure-1609/lant/common"
	"github.com/involk-secure-1609/lant/helper"
	"github.com/pkg/errors"
)

// chunkCacheKey pins a cached chunk to the file version it was read from.
type chunkCacheKey struct {
	path    string
	index   uint64
	size    int64
	modTime int64
}

func (fileServer *FileServer) handleGetRequest(payload []byte) (net.Buffers, error) {
	request, err := helper.TextCodec[common.GetRequest]{}.Decode(payload)
	if err != nil {
		return nil, err
	}
	response, err := fileServer.loadChunk(request)
	if err != nil {
		return nil, err
	}
	return helper.EncodePayload[common.GetResponse](helper.GetResponseCodec{}, common.GetResponseType, response)
}

// loadChunk picks the chunk the client is missing from the remote file and reads it.
func (fileServer *FileServer) loadChunk(request common.GetRequest) (common.GetResponse, error) {
	remoteFilePath, err := helper.ResolveRegularFile(fileServer.rootPath, request.RemoteFilePath)
	if err != nil {
		return common.GetResponse{}, err
	}

	remoteFile, err := helper.OpenExistingFile(remoteFilePath)
	if err != nil {
		return common.GetResponse{}, errors.Wrapf(common.ErrPath, "file not exists, path=%q", request.RemoteFilePath)
	}
	defer remoteFile.Close()

	info, err := remoteFile.Stat()
	if err != nil {
		return common.GetResponse{}, err
	}
	fileLen := uint64(info.Size())
	remoteChunkSize := common.ChunkSizeFromLength(fileLen)
	localChunkSize := request.LocalChunkSize
	if !localChunkSize.IsValid() {
		return common.GetResponse{}, errors.Wrapf(common.ErrPayload, "invalid local chunk size %v", localChunkSize)
	}

	if localChunkSize == remoteChunkSize {
		return common.GetResponse{}, errors.Wrapf(common.ErrAlreadyComplete, "path=%q", request.RemoteFilePath)
	}
	if localChunkSize.TotalSize() > fileLen {
		return common.GetResponse{}, errors.Wrapf(common.ErrSizeMismatch, "local copy has %d bytes, remote file %q has %d",
			localChunkSize.TotalSize(), request.RemoteFilePath, fileLen)
	}

	index := localChunkSize.ResumeIndex()
	data, err := fileServer.readChunk(remoteFile, remoteFilePath, info, index)
	if err != nil {
		return common.GetResponse{}, err
	}
	return common.GetResponse{
		Meta: common.GetResponseMeta{RemoteChunkSize: remoteChunkSize, CurrChunkIndex: index},
		Data: data,
	}, nil
}

func (fileServer *FileServer) readChunk(remoteFile *os.File, remoteFilePath string, info os.FileInfo, index uint64) ([]byte, error) {
	key := chunkCacheKey{path: remoteFilePath, index: index, size: info.Size(), modTime: info.ModTime().UnixNano()}
	if data, ok := fileServer.chunkCache.Get(key); ok {
		return data, nil
	}
	data, err := helper.ReadChunk(remoteFile, uint64(info.Size()), index)
	if err != nil {
		return nil, err
	}
	fileServer.chunkCache.Put(key, data)
	return data, nil
}
