package transport

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/involk-secure-1609/lant/common"
	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"
)

const (
	maxIdleTimeout     = 30 * time.Second
	keepAlivePeriod    = 10 * time.Second
	maxIncomingStreams = 1024
)

// CloseOK is the application code a client closes a finished connection with.
const CloseOK quic.ApplicationErrorCode = 0

func quicConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:     maxIdleTimeout,
		KeepAlivePeriod:    keepAlivePeriod,
		MaxIncomingStreams: maxIncomingStreams,
	}
}

// Listen opens a QUIC listener on addr.
func Listen(addr string, tlsConf *tls.Config) (*quic.Listener, error) {
	listener, err := quic.ListenAddr(addr, tlsConf, quicConfig())
	if err != nil {
		return nil, errors.Wrapf(common.ErrTransport, "listen on %s: %v", addr, err)
	}
	return listener, nil
}

// Dial connects to addr. The server name defaults to the host part of addr.
func Dial(ctx context.Context, addr string, tlsConf *tls.Config) (quic.Connection, error) {
	if tlsConf == nil {
		tlsConf = &tls.Config{NextProtos: []string{Protocol}}
	}
	tlsConf = tlsConf.Clone()
	if tlsConf.ServerName == "" {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, errors.Wrapf(common.ErrDialServer, "bad address %q: %v", addr, err)
		}
		tlsConf.ServerName = host
	}
	conn, err := quic.DialAddr(ctx, addr, tlsConf, quicConfig())
	if err != nil {
		return nil, errors.Wrapf(common.ErrDialServer, "dial %s: %v", addr, err)
	}
	return conn, nil
}

// IsClosed reports whether err only says the peer or the local side closed the connection.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	var appErr *quic.ApplicationError
	if errors.As(err, &appErr) {
		return true
	}
	var idleErr *quic.IdleTimeoutError
	if errors.As(err, &idleErr) {
		return true
	}
	return errors.Is(err, quic.ErrServerClosed) || errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed)
}
