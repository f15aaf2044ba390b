package fileserver

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/involk-secure-1609/lant/common"
	"github.com/involk-secure-1609/lant/helper"
	lrucache "github.com/involk-secure-1609/lant/lruCache"
	"github.com/involk-secure-1609/lant/transport"
	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultMaxInFlight    = 256
	DefaultChunkCacheSize = 8
)

type Config struct {
	ListenOn  string
	RootPath  string
	TLSConfig *tls.Config
	// MaxInFlight bounds the streams handled at once, 0 means no bound.
	MaxInFlight int64
	// ChunkCacheSize is the number of read chunks kept for get requests, 0 disables the cache.
	ChunkCacheSize int
	// NodeID seeds the request id generator.
	NodeID int64
}

// FileServer serves ls, put and get requests for the files under its root path.
// Every request arrives on its own stream and is answered on the same stream.
type FileServer struct {
	config      Config
	rootPath    string
	logger      common.Logger
	idGenerator *snowflake.Node
	chunkCache  *lrucache.LRUBufferCache[chunkCacheKey]
	inFlight    *semaphore.Weighted
	handlers    map[common.MessageType]handlerFunc

	mu       sync.Mutex
	listener *quic.Listener
	cancel   context.CancelFunc
	group    *errgroup.Group
}

func NewFileServer(config Config, logger common.Logger) (*FileServer, error) {
	rootPath, err := helper.CanonicalRoot(config.RootPath)
	if err != nil {
		return nil, err
	}
	node, err := snowflake.NewNode(config.NodeID)
	if err != nil {
		return nil, errors.Wrap(err, "NewFileServer failed to create id generator")
	}

	fileServer := &FileServer{
		config:      config,
		rootPath:    rootPath,
		logger:      logger,
		idGenerator: node,
		chunkCache:  lrucache.NewLRUBufferCache[chunkCacheKey](config.ChunkCacheSize),
	}
	if config.MaxInFlight > 0 {
		fileServer.inFlight = semaphore.NewWeighted(config.MaxInFlight)
	}
	fileServer.handlers = fileServer.routes()
	return fileServer, nil
}

// RootPath is the canonical directory every request is confined to.
func (fileServer *FileServer) RootPath() string {
	return fileServer.rootPath
}

// Start listens on the configured address and accepts connections in the background until
// ctx is done or Close is called.
func (fileServer *FileServer) Start(ctx context.Context) error {
	fileServer.mu.Lock()
	defer fileServer.mu.Unlock()
	if fileServer.listener != nil {
		return errors.New("file server already started")
	}

	listener, err := transport.Listen(fileServer.config.ListenOn, fileServer.config.TLSConfig)
	if err != nil {
		return err
	}
	fileServer.logger.Infof("listen on %s, root path is %s", listener.Addr(), fileServer.rootPath)

	ctx, cancel := context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		defer cancel()
		return fileServer.acceptLoop(ctx, listener)
	})
	group.Go(func() error {
		<-ctx.Done()
		return listener.Close()
	})

	fileServer.listener = listener
	fileServer.cancel = cancel
	fileServer.group = group
	return nil
}

// Addr is the address the server listens on, nil before Start.
func (fileServer *FileServer) Addr() net.Addr {
	fileServer.mu.Lock()
	defer fileServer.mu.Unlock()
	if fileServer.listener == nil {
		return nil
	}
	return fileServer.listener.Addr()
}

// Wait blocks until the accept loop has stopped.
func (fileServer *FileServer) Wait() error {
	fileServer.mu.Lock()
	group := fileServer.group
	fileServer.mu.Unlock()
	if group == nil {
		return nil
	}
	err := group.Wait()
	if transport.IsClosed(err) {
		return nil
	}
	return err
}

// Close stops accepting connections and waits for the accept loop to return.
func (fileServer *FileServer) Close() error {
	fileServer.mu.Lock()
	cancel := fileServer.cancel
	fileServer.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	return fileServer.Wait()
}

func (fileServer *FileServer) acceptLoop(ctx context.Context, listener *quic.Listener) error {
	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || transport.IsClosed(err) {
				return nil
			}
			fileServer.logger.Errorf("failed to accept connection: %v", err)
			return errors.Wrap(common.ErrTransport, err.Error())
		}
		fileServer.logger.Infof("receive a connection, from %s", conn.RemoteAddr())
		go fileServer.handleConnection(ctx, conn)
	}
}

func (fileServer *FileServer) handleConnection(ctx context.Context, conn quic.Connection) {
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			if transport.IsClosed(err) {
				fileServer.logger.Infof("connection closed, from %s, reason=%v", conn.RemoteAddr(), err)
			} else {
				fileServer.logger.Errorf("no more streams on connection %s, error=%v", conn.RemoteAddr(), err)
			}
			return
		}

		if fileServer.inFlight != nil {
			if err := fileServer.inFlight.Acquire(ctx, 1); err != nil {
				stream.CancelRead(0)
				stream.Close()
				return
			}
		}
		requestID := fileServer.idGenerator.Generate()
		go func() {
			if fileServer.inFlight != nil {
				defer fileServer.inFlight.Release(1)
			}
			fileServer.handleStream(requestID, stream)
		}()
	}
}

// handleStream reads one request to EOF, answers it and closes the send side of stream.
func (fileServer *FileServer) handleStream(requestID snowflake.ID, stream io.ReadWriteCloser) {
	defer stream.Close()

	var response net.Buffers
	request, err := helper.ReadMessage(stream, helper.MaxFrameSize)
	switch {
	case errors.Is(err, common.ErrTransport):
		fileServer.logger.Warningf("[%s] receive request error, error=%v", requestID, err)
		return
	case err != nil:
		fileServer.logger.Warningf("[%s] reject request, error=%v", requestID, err)
		response = helper.EncodeErrorMessage(err)
	default:
		response = fileServer.dispatch(requestID, request)
	}

	if err := helper.WriteMessage(stream, response); err != nil {
		fileServer.logger.Errorf("[%s] send back message error, error=%v", requestID, err)
	}
}
