package client

import (
	"context"

	"github.com/involk-secure-1609/lant/common"
	"github.com/involk-secure-1609/lant/helper"
)

// Ls lists pathOnRemote on the server.
func (client *Client) Ls(ctx context.Context, pathOnRemote string) (common.LsResponse, error) {
	conn, err := client.connect(ctx)
	if err != nil {
		return common.LsResponse{}, err
	}
	defer client.closeConnection(conn)

	request := common.LsRequest{PathOnRemote: pathOnRemote}
	client.logger.Debugf(">>>: %+v", request)
	return roundTrip[common.LsRequest, common.LsResponse](ctx, client, conn,
		helper.TextCodec[common.LsRequest]{}, common.LsRequestType, request,
		helper.TextCodec[common.LsResponse]{}, common.LsResponseType)
}
