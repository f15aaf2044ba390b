package fileserver

import (
	"net"

	"github.com/bwmarrin/snowflake"
	"github.com/involk-secure-1609/lant/common"
	"github.com/involk-secure-1609/lant/helper"
	"github.com/pkg/errors"
)

type handlerFunc func(fileServer *FileServer, payload []byte) (net.Buffers, error)

func (fileServer *FileServer) routes() map[common.MessageType]handlerFunc {
	return map[common.MessageType]handlerFunc{
		common.LsRequestType:  (*FileServer).handleLsRequest,
		common.PutRequestType: (*FileServer).handlePutRequest,
		common.GetRequestType: (*FileServer).handleGetRequest,
	}
}

// dispatch decodes a request frame and runs its handler. Any failure is answered with an
// Error frame carrying the error text.
func (fileServer *FileServer) dispatch(requestID snowflake.ID, request []byte) net.Buffers {
	messageType, payload, err := helper.DecodeMessage(request)
	if err != nil {
		fileServer.logger.Warningf("[%s] bad request frame, error=%v", requestID, err)
		return helper.EncodeErrorMessage(err)
	}

	fileServer.logger.Debugf("[%s] %s with %d byte payload", requestID, messageType, len(payload))
	response, err := fileServer.route(messageType, payload)
	if err != nil {
		fileServer.logger.Warningf("[%s] %s failed, error=%v", requestID, messageType, err)
		return helper.EncodeErrorMessage(err)
	}
	return response
}

func (fileServer *FileServer) route(messageType common.MessageType, payload []byte) (net.Buffers, error) {
	if payload == nil {
		return nil, errors.Wrap(common.ErrUnsupportedRequest, "request body is null")
	}
	handler, ok := fileServer.handlers[messageType]
	if !ok {
		return nil, errors.Wrapf(common.ErrUnsupportedRequest, "type=%s", messageType)
	}
	return handler(fileServer, payload)
}
