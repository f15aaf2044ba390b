package client

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/involk-secure-1609/lant/common"
	"github.com/involk-secure-1609/lant/helper"
	"github.com/involk-secure-1609/lant/transport"
	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"
)

const (
	DefaultDialRetries = 3
	defaultDialDelay   = 200 * time.Millisecond
)

type Config struct {
	ConnectTo   string
	TLSConfig   *tls.Config
	DialRetries uint
	DialDelay   time.Duration
}

// Client runs one command per connection. Every round trip of a command opens a fresh stream,
// sends one request and reads one response.
type Client struct {
	config Config
	logger common.Logger
}

func NewClient(config Config, logger common.Logger) *Client {
	if config.DialRetries == 0 {
		config.DialRetries = DefaultDialRetries
	}
	if config.DialDelay == 0 {
		config.DialDelay = defaultDialDelay
	}
	return &Client{config: config, logger: logger}
}

// connect dials the server, retrying with exponential backoff.
func (client *Client) connect(ctx context.Context) (quic.Connection, error) {
	var conn quic.Connection
	attempt := 0
	err := retry.New(
		retry.Attempts(client.config.DialRetries),
		retry.Delay(client.config.DialDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	).Do(func() error {
		attempt++
		var err error
		conn, err = transport.Dial(ctx, client.config.ConnectTo, client.config.TLSConfig)
		if err != nil {
			client.logger.Infof("connection attempt %d/%d failed: %v", attempt, client.config.DialRetries, err)
		}
		return err
	})
	if err != nil {
		client.logger.Warningf("failed to dial %s after %d attempts", client.config.ConnectTo, attempt)
		return nil, err
	}
	return conn, nil
}

func (client *Client) closeConnection(conn quic.Connection) {
	if err := conn.CloseWithError(transport.CloseOK, "OK"); err != nil {
		client.logger.Debugf("close connection: %v", err)
	}
}

// sendAndReceive writes message on a new stream, closes its send side and reads the whole response.
func (client *Client) sendAndReceive(ctx context.Context, conn quic.Connection, message net.Buffers) ([]byte, error) {
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, errors.Wrap(common.ErrTransport, err.Error())
	}
	if err := helper.WriteMessage(stream, message); err != nil {
		stream.CancelRead(0)
		return nil, err
	}
	if err := stream.Close(); err != nil {
		return nil, errors.Wrap(common.ErrTransport, err.Error())
	}
	return helper.ReadMessage(stream, helper.MaxFrameSize)
}

// unwrapMessage returns the payload of response when it has the expected type. An Error
// response is logged and surfaced as ErrRemote, any other type as ErrIntendedResponseType.
func (client *Client) unwrapMessage(response []byte, expected common.MessageType) ([]byte, error) {
	messageType, payload, err := helper.DecodeMessage(response)
	if err != nil {
		return nil, err
	}
	switch messageType {
	case expected:
		if payload == nil {
			return nil, errors.Wrapf(common.ErrPayload, "%s without payload", messageType)
		}
		return payload, nil
	case common.ErrorType:
		client.logger.Errorf("[ERR]%s", payload)
		return nil, errors.Wrap(common.ErrRemote, string(payload))
	default:
		client.logger.Errorf("[ERR]%s not fit", messageType)
		return nil, errors.Wrapf(common.ErrIntendedResponseType, "expected %s, got %s", expected, messageType)
	}
}

// roundTrip encodes request with requestCodec, sends it on its own stream and decodes the
// answer with responseCodec.
func roundTrip[Req any, Res any](
	ctx context.Context,
	client *Client,
	conn quic.Connection,
	requestCodec helper.Codec[Req], requestType common.MessageType, request Req,
	responseCodec helper.Codec[Res], responseType common.MessageType,
) (Res, error) {
	var response Res
	message, err := helper.EncodePayload(requestCodec, requestType, request)
	if err != nil {
		return response, err
	}
	raw, err := client.sendAndReceive(ctx, conn, message)
	if err != nil {
		return response, err
	}
	payload, err := client.unwrapMessage(raw, responseType)
	if err != nil {
		return response, err
	}
	return responseCodec.Decode(payload)
}
