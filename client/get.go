package client

import (
	"context"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/involk-secure-1609/lant/common"
	"github.com/involk-secure-1609/lant/helper"
	"github.com/pkg/errors"
)

// Get downloads filePath from the server into localDir, continuing from whatever part of the
// file localDir already holds.
func (client *Client) Get(ctx context.Context, filePath string, localDir string) error {
	start := time.Now()
	client.logger.Infof("get file: %s, to local dir: %s", filePath, localDir)

	fileName := filepath.Base(filepath.Clean(filePath))
	if fileName == "." || fileName == ".." || fileName == string(filepath.Separator) {
		return errors.Wrapf(common.ErrPath, "got file name error, path=%q", filePath)
	}
	localFilePath := filepath.Join(localDir, fileName)

	conn, err := client.connect(ctx)
	if err != nil {
		return err
	}
	defer client.closeConnection(conn)

	request := common.GetRequest{RemoteFilePath: filePath, LocalChunkSize: common.FileChunkSize(localFilePath)}
	var remoteLen uint64
	for {
		client.logger.Debugf(">>>: %+v", request)
		response, err := roundTrip[common.GetRequest, common.GetResponse](ctx, client, conn,
			helper.TextCodec[common.GetRequest]{}, common.GetRequestType, request,
			helper.GetResponseCodec{}, common.GetResponseType)
		if err != nil {
			return err
		}
		client.logger.Debugf("<<<: %+v", response.Meta)
		remoteLen = response.Meta.RemoteChunkSize.TotalSize()

		localChunkSize, done, err := storeGetChunk(localFilePath, response)
		if err != nil {
			return err
		}
		if done {
			break
		}
		client.logger.Infof("get %s: %s of %s on local", fileName,
			humanize.IBytes(localChunkSize.TotalSize()), humanize.IBytes(remoteLen))
		request.LocalChunkSize = localChunkSize
	}

	client.logger.Infof("get file: %s, to local dir: %s finish, %s in %s",
		filePath, localDir, humanize.IBytes(remoteLen), time.Since(start).Round(time.Millisecond))
	return nil
}

// storeGetChunk writes the chunk carried by response at its offset. It reports done once the
// last chunk of the remote file is written, otherwise the new size of the local file.
func storeGetChunk(localFilePath string, response common.GetResponse) (common.ChunkSize, bool, error) {
	localFile, err := helper.OpenChunkFile(localFilePath)
	if err != nil {
		return common.ChunkSize{}, false, err
	}
	defer localFile.Close()

	if err := helper.WriteChunk(localFile, response.Meta.CurrChunkIndex, response.Data); err != nil {
		return common.ChunkSize{}, false, err
	}
	if response.Meta.RemoteChunkSize.TotalChunks == response.Meta.CurrChunkIndex+1 {
		return common.ChunkSize{}, true, nil
	}

	info, err := localFile.Stat()
	if err != nil {
		return common.ChunkSize{}, false, err
	}
	return common.ChunkSizeFromLength(uint64(info.Size())), false, nil
}
