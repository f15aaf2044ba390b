package fileserver

import (
	"net"
	"os"
	"path/filepath"

	"github.com/involk-secure-1609/lant/common"
	"github.com/involk-secure-1609/lant/helper"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

func (fileServer *FileServer) handleLsRequest(payload []byte) (net.Buffers, error) {
	request, err := helper.TextCodec[common.LsRequest]{}.Decode(payload)
	if err != nil {
		return nil, err
	}
	response, err := fileServer.listPath(request.PathOnRemote)
	if err != nil {
		return nil, err
	}
	return helper.EncodePayload[common.LsResponse](helper.TextCodec[common.LsResponse]{}, common.LsResponseType, response)
}

// listPath lists a directory under the root, or describes a single file. A path that escapes
// the root lists the root itself.
func (fileServer *FileServer) listPath(pathOnRemote string) (common.LsResponse, error) {
	lsPath, err := helper.ResolveDirOrRoot(fileServer.rootPath, pathOnRemote)
	if err != nil {
		return common.LsResponse{}, errors.Wrapf(common.ErrPath, "ls path resource not exists, path=%q", pathOnRemote)
	}

	info, err := os.Stat(lsPath)
	if err != nil {
		return common.LsResponse{}, errors.Wrapf(common.ErrPath, "ls path resource not exists, path=%q", pathOnRemote)
	}

	response := common.LsResponse{Dir: pathOnRemote, Items: []common.DirItem{}}
	switch {
	case info.IsDir():
		entries, err := os.ReadDir(lsPath)
		if err != nil {
			return common.LsResponse{}, errors.Wrapf(common.ErrPath, "read dir %q: %v", pathOnRemote, err)
		}
		response.Items = lo.Map(entries, func(entry os.DirEntry, _ int) common.DirItem {
			itemType := common.DirItemDir
			if entry.Type().IsRegular() {
				itemType = common.DirItemFile
			}
			return common.DirItem{Name: entry.Name(), Type: itemType}
		})
	case info.Mode().IsRegular():
		response.Items = append(response.Items, common.DirItem{Name: filepath.Base(lsPath), Type: common.DirItemFile})
	default:
		return common.LsResponse{}, errors.Wrapf(common.ErrPath, "ls path resource not exists, path=%q", pathOnRemote)
	}
	return response, nil
}
