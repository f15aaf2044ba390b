package client

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/involk-secure-1609/lant/common"
	"github.com/involk-secure-1609/lant/helper"
	"github.com/pkg/errors"
)

// Put uploads filePath into remoteDir on the server. Bytes the server already holds are not
// sent again, so a Put interrupted halfway continues where it stopped.
func (client *Client) Put(ctx context.Context, filePath string, remoteDir string) error {
	start := time.Now()
	client.logger.Infof("put file: %s, to remote dir: %s", filePath, remoteDir)

	localFile, err := helper.OpenExistingFile(filePath)
	if err != nil {
		return errors.Wrapf(err, "Put failed to open %s", filePath)
	}
	defer localFile.Close()

	info, err := localFile.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return errors.Wrapf(common.ErrPath, "%s is not a regular file", filePath)
	}
	localLen := uint64(info.Size())
	localChunkSize := common.ChunkSizeFromLength(localLen)

	conn, err := client.connect(ctx)
	if err != nil {
		return err
	}
	defer client.closeConnection(conn)

	request := common.PutRequest{Meta: common.PutRequestMeta{
		FileName:  filepath.Base(filePath),
		RemoteDir: remoteDir,
	}}
	for {
		client.logger.Debugf(">>>: %+v", request.Meta)
		response, err := roundTrip[common.PutRequest, common.PutResponse](ctx, client, conn,
			helper.PutRequestCodec{}, common.PutRequestType, request,
			helper.TextCodec[common.PutResponse]{}, common.PutResponseType)
		if err != nil {
			return err
		}
		client.logger.Debugf("<<<: %+v", response)
		if response.IsDone {
			break
		}

		request.Meta.CurrChunkIndex, request.Data, request.Meta.IsDone, err =
			nextPutChunk(localFile, localLen, localChunkSize, response.RemoteChunkSize)
		if err != nil {
			return err
		}
		if !request.Meta.IsDone {
			client.logger.Infof("put %s: %s of %s on remote", filepath.Base(filePath),
				humanize.IBytes(response.RemoteChunkSize.TotalSize()), humanize.IBytes(localLen))
		}
	}

	client.logger.Infof("put file: %s, to remote dir: %s finish, %s in %s",
		filePath, remoteDir, humanize.IBytes(localLen), time.Since(start).Round(time.Millisecond))
	return nil
}

// nextPutChunk decides what to send after the server reported remote. When both sides match
// the upload is done, otherwise the chunk at remote's resume index is read from the local file.
func nextPutChunk(localFile io.ReaderAt, localLen uint64, local common.ChunkSize, remote common.ChunkSize) (uint64, []byte, bool, error) {
	if local == remote {
		return 0, nil, true, nil
	}
	if remote.TotalSize() > localLen {
		return 0, nil, false, errors.Wrapf(common.ErrSizeMismatch, "remote file has %d bytes, local file %d",
			remote.TotalSize(), localLen)
	}
	index := remote.ResumeIndex()
	data, err := helper.ReadChunk(localFile, localLen, index)
	if err != nil {
		return 0, nil, false, err
	}
	return index, data, false, nil
}
