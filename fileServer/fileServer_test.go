package fileserver

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/involk-secure-1609/lant/common"
	"github.com/involk-secure-1609/lant/helper"
	"github.com/involk-secure-1609/lant/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *FileServer {
	t.Helper()
	fileServer, err := NewFileServer(Config{
		RootPath:       t.TempDir(),
		MaxInFlight:    4,
		ChunkCacheSize: 4,
	}, common.NopLogger{})
	require.NoError(t, err)
	return fileServer
}

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, content, 0644))
}

// roundTrip runs one framed request through the dispatcher and decodes the framed answer.
func roundTrip(t *testing.T, fileServer *FileServer, message [][]byte) (common.MessageType, []byte) {
	t.Helper()
	response := fileServer.dispatch(fileServer.idGenerator.Generate(), bytes.Join(message, nil))
	messageType, payload, err := helper.DecodeMessage(bytes.Join(response, nil))
	require.NoError(t, err)
	return messageType, payload
}

func requireError(t *testing.T, messageType common.MessageType, payload []byte, text string) {
	t.Helper()
	require.Equal(t, common.ErrorType, messageType, "payload: %s", payload)
	assert.Contains(t, string(payload), text)
}

func TestNewFileServer(t *testing.T) {
	_, err := NewFileServer(Config{RootPath: filepath.Join(t.TempDir(), "missing")}, common.NopLogger{})
	assert.ErrorIs(t, err, common.ErrPath)

	_, err = NewFileServer(Config{RootPath: t.TempDir(), NodeID: 5000}, common.NopLogger{})
	assert.Error(t, err)

	fileServer, err := NewFileServer(Config{RootPath: t.TempDir()}, common.NopLogger{})
	require.NoError(t, err)
	assert.Nil(t, fileServer.inFlight)
	assert.Nil(t, fileServer.chunkCache)
	assert.Len(t, fileServer.handlers, 3)
}

func TestDispatchRejects(t *testing.T) {
	fileServer := newTestServer(t)

	tests := []struct {
		name    string
		message [][]byte
		text    string
	}{
		{"garbage frame", [][]byte{[]byte("nope")}, "malformed message frame"},
		{"request without payload", helper.EncodeMessage(common.LsRequestType, nil), "request body is null"},
		{"response type as request", helper.EncodeMessage(common.PutResponseType, [][]byte{[]byte("{}")}), "not supported message type"},
		{"error type as request", helper.EncodeMessage(common.ErrorType, [][]byte{[]byte("x")}), "type=Error"},
		{"bad text payload", helper.EncodeMessage(common.GetRequestType, [][]byte{[]byte("{")}), "malformed message payload"},
		{"bad put payload", helper.EncodeMessage(common.PutRequestType, [][]byte{{1, 2}}), "malformed message payload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messageType, payload := roundTrip(t, fileServer, tt.message)
			requireError(t, messageType, payload, tt.text)
		})
	}
}

func lsRequest(t *testing.T, path string) [][]byte {
	message, err := helper.EncodePayload[common.LsRequest](helper.TextCodec[common.LsRequest]{}, common.LsRequestType,
		common.LsRequest{PathOnRemote: path})
	require.NoError(t, err)
	return message
}

func TestLs(t *testing.T) {
	fileServer := newTestServer(t)
	root := fileServer.RootPath()
	writeFile(t, filepath.Join(root, "b.txt"), []byte("b"))
	writeFile(t, filepath.Join(root, "sub", "inner.txt"), []byte("inner"))

	decode := func(payload []byte) common.LsResponse {
		response, err := helper.TextCodec[common.LsResponse]{}.Decode(payload)
		require.NoError(t, err)
		return response
	}

	t.Run("root", func(t *testing.T) {
		messageType, payload := roundTrip(t, fileServer, lsRequest(t, "."))
		require.Equal(t, common.LsResponseType, messageType)
		response := decode(payload)
		assert.Equal(t, ".", response.Dir)
		assert.Equal(t, []common.DirItem{
			{Name: "b.txt", Type: common.DirItemFile},
			{Name: "sub", Type: common.DirItemDir},
		}, response.Items)
	})

	t.Run("single file", func(t *testing.T) {
		messageType, payload := roundTrip(t, fileServer, lsRequest(t, "sub/inner.txt"))
		require.Equal(t, common.LsResponseType, messageType)
		assert.Equal(t, []common.DirItem{{Name: "inner.txt", Type: common.DirItemFile}}, decode(payload).Items)
	})

	t.Run("escaping path lists root", func(t *testing.T) {
		messageType, payload := roundTrip(t, fileServer, lsRequest(t, "../.."))
		require.Equal(t, common.LsResponseType, messageType)
		assert.Len(t, decode(payload).Items, 2)
	})

	t.Run("empty dir", func(t *testing.T) {
		require.NoError(t, os.Mkdir(filepath.Join(root, "empty"), 0755))
		messageType, payload := roundTrip(t, fileServer, lsRequest(t, "empty"))
		require.Equal(t, common.LsResponseType, messageType)
		assert.Empty(t, decode(payload).Items)
	})

	t.Run("missing", func(t *testing.T) {
		messageType, payload := roundTrip(t, fileServer, lsRequest(t, "nope"))
		requireError(t, messageType, payload, "ls path resource not exists")
	})
}

func putRequest(t *testing.T, meta common.PutRequestMeta, data []byte) [][]byte {
	message, err := helper.EncodePayload[common.PutRequest](helper.PutRequestCodec{}, common.PutRequestType,
		common.PutRequest{Meta: meta, Data: data})
	require.NoError(t, err)
	return message
}

func decodePutResponse(t *testing.T, messageType common.MessageType, payload []byte) common.PutResponse {
	require.Equal(t, common.PutResponseType, messageType, "payload: %s", payload)
	response, err := helper.TextCodec[common.PutResponse]{}.Decode(payload)
	require.NoError(t, err)
	return response
}

func putRoundTrip(t *testing.T, fileServer *FileServer, message [][]byte) common.PutResponse {
	t.Helper()
	messageType, payload := roundTrip(t, fileServer, message)
	return decodePutResponse(t, messageType, payload)
}

func TestPut(t *testing.T) {
	fileServer := newTestServer(t)
	root := fileServer.RootPath()
	require.NoError(t, os.Mkdir(filepath.Join(root, "up"), 0755))
	meta := common.PutRequestMeta{FileName: "/local/path/data.bin", RemoteDir: "up"}
	destination := filepath.Join(root, "up", "data.bin")

	// probe creates the file and reports it empty
	response := putRoundTrip(t, fileServer, putRequest(t, meta, nil))
	assert.Equal(t, common.PutResponse{}, response)
	assert.FileExists(t, destination)

	meta.CurrChunkIndex = 0
	response = putRoundTrip(t, fileServer, putRequest(t, meta, []byte("hello")))
	assert.Equal(t, common.ChunkSize{TotalChunks: 1, RestSize: 5}, response.RemoteChunkSize)

	// the same chunk again leaves the file unchanged
	response = putRoundTrip(t, fileServer, putRequest(t, meta, []byte("hello")))
	assert.Equal(t, common.ChunkSize{TotalChunks: 1, RestSize: 5}, response.RemoteChunkSize)
	content, err := os.ReadFile(destination)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), content)

	meta.IsDone = true
	response = putRoundTrip(t, fileServer, putRequest(t, meta, nil))
	assert.True(t, response.IsDone)

	t.Run("escaping remote dir lands in root", func(t *testing.T) {
		escaping := common.PutRequestMeta{FileName: "root.bin", RemoteDir: "../../.."}
		putRoundTrip(t, fileServer, putRequest(t, escaping, []byte("x")))
		assert.FileExists(t, filepath.Join(root, "root.bin"))
	})

	t.Run("absolute remote dir outside root lands in root", func(t *testing.T) {
		outside := t.TempDir()
		absolute := common.PutRequestMeta{FileName: "abs.bin", RemoteDir: outside}
		response := putRoundTrip(t, fileServer, putRequest(t, absolute, []byte("abs")))
		assert.Equal(t, common.ChunkSize{TotalChunks: 1, RestSize: 3}, response.RemoteChunkSize)
		assert.FileExists(t, filepath.Join(root, "abs.bin"))
		assert.NoFileExists(t, filepath.Join(outside, "abs.bin"))
	})

	t.Run("absolute remote dir inside root", func(t *testing.T) {
		inside := common.PutRequestMeta{FileName: "in.bin", RemoteDir: filepath.Join(root, "up")}
		putRoundTrip(t, fileServer, putRequest(t, inside, []byte("in")))
		assert.FileExists(t, filepath.Join(root, "up", "in.bin"))
	})

	t.Run("missing remote dir", func(t *testing.T) {
		missing := common.PutRequestMeta{FileName: "x.bin", RemoteDir: "absent"}
		messageType, payload := roundTrip(t, fileServer, putRequest(t, missing, nil))
		requireError(t, messageType, payload, "path resolution failed")
	})
}

func TestPutTwentyMillionBytes(t *testing.T) {
	fileServer := newTestServer(t)
	content := bytes.Repeat([]byte("0123456789"), 2_000_000)
	meta := common.PutRequestMeta{FileName: "big.bin", RemoteDir: "."}

	meta.CurrChunkIndex = 1
	response := putRoundTrip(t, fileServer, putRequest(t, meta, content[common.ChunkUnitSize:]))
	// a chunk written past the end leaves a hole in front of it
	assert.Equal(t, common.ChunkSize{TotalChunks: 2, RestSize: 3_222_784}, response.RemoteChunkSize)

	meta.CurrChunkIndex = 0
	response = putRoundTrip(t, fileServer, putRequest(t, meta, content[:common.ChunkUnitSize]))
	assert.Equal(t, common.ChunkSize{TotalChunks: 2, RestSize: 3_222_784}, response.RemoteChunkSize)

	stored, err := os.ReadFile(filepath.Join(fileServer.RootPath(), "big.bin"))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(content, stored))
}

func getRequest(t *testing.T, path string, local common.ChunkSize) [][]byte {
	message, err := helper.EncodePayload[common.GetRequest](helper.TextCodec[common.GetRequest]{}, common.GetRequestType,
		common.GetRequest{RemoteFilePath: path, LocalChunkSize: local})
	require.NoError(t, err)
	return message
}

func decodeGetResponse(t *testing.T, messageType common.MessageType, payload []byte) common.GetResponse {
	require.Equal(t, common.GetResponseType, messageType, "payload: %s", payload)
	response, err := helper.GetResponseCodec{}.Decode(payload)
	require.NoError(t, err)
	return response
}

func getRoundTrip(t *testing.T, fileServer *FileServer, message [][]byte) common.GetResponse {
	t.Helper()
	messageType, payload := roundTrip(t, fileServer, message)
	return decodeGetResponse(t, messageType, payload)
}

func TestGet(t *testing.T) {
	fileServer := newTestServer(t)
	root := fileServer.RootPath()
	content := bytes.Repeat([]byte("abcd"), 5_000_000)
	writeFile(t, filepath.Join(root, "files", "big.bin"), content)
	writeFile(t, filepath.Join(root, "empty.bin"), nil)
	remote := common.ChunkSize{TotalChunks: 2, RestSize: 3_222_784}

	t.Run("first chunk", func(t *testing.T) {
		response := getRoundTrip(t, fileServer, getRequest(t, "files/big.bin", common.ChunkSize{}))
		assert.Equal(t, remote, response.Meta.RemoteChunkSize)
		assert.Equal(t, uint64(0), response.Meta.CurrChunkIndex)
		assert.True(t, bytes.Equal(content[:common.ChunkUnitSize], response.Data))
	})

	t.Run("last chunk", func(t *testing.T) {
		response := getRoundTrip(t, fileServer, getRequest(t, "files/big.bin", common.ChunkSize{TotalChunks: 1}))
		assert.Equal(t, uint64(1), response.Meta.CurrChunkIndex)
		assert.Len(t, response.Data, 3_222_784)
		assert.True(t, bytes.Equal(content[common.ChunkUnitSize:], response.Data))
	})

	t.Run("partial chunk is fetched again", func(t *testing.T) {
		response := getRoundTrip(t, fileServer, getRequest(t, "files/big.bin", common.ChunkSize{TotalChunks: 2, RestSize: 100}))
		assert.Equal(t, uint64(1), response.Meta.CurrChunkIndex)
		assert.Len(t, response.Data, 3_222_784)
	})

	t.Run("already complete", func(t *testing.T) {
		messageType, payload := roundTrip(t, fileServer, getRequest(t, "files/big.bin", remote))
		requireError(t, messageType, payload, "the file transfer is already completed")
	})

	t.Run("empty file is already complete", func(t *testing.T) {
		messageType, payload := roundTrip(t, fileServer, getRequest(t, "empty.bin", common.ChunkSize{}))
		requireError(t, messageType, payload, "the file transfer is already completed")
	})

	t.Run("local copy larger", func(t *testing.T) {
		messageType, payload := roundTrip(t, fileServer, getRequest(t, "files/big.bin", common.ChunkSize{TotalChunks: 3, RestSize: 1}))
		requireError(t, messageType, payload, "destination is larger than the source")
	})

	t.Run("invalid local size", func(t *testing.T) {
		messageType, payload := roundTrip(t, fileServer, getRequest(t, "files/big.bin", common.ChunkSize{TotalChunks: 0, RestSize: 1}))
		requireError(t, messageType, payload, "malformed message payload")
	})

	for _, path := range []string{"files", "files/nope.bin", "../outside.bin"} {
		t.Run("not a file "+path, func(t *testing.T) {
			messageType, payload := roundTrip(t, fileServer, getRequest(t, path, common.ChunkSize{}))
			requireError(t, messageType, payload, "file not exists")
		})
	}
}

func TestGetChunkCache(t *testing.T) {
	fileServer := newTestServer(t)
	path := filepath.Join(fileServer.RootPath(), "small.bin")
	writeFile(t, path, []byte("first version"))

	for i := 0; i < 3; i++ {
		response := getRoundTrip(t, fileServer, getRequest(t, "small.bin", common.ChunkSize{}))
		assert.Equal(t, []byte("first version"), response.Data)
	}
	assert.Equal(t, 1, fileServer.chunkCache.Len())

	// a rewritten file changes size, so the cached chunk is not served
	writeFile(t, path, []byte("second, longer version"))
	response := getRoundTrip(t, fileServer, getRequest(t, "small.bin", common.ChunkSize{}))
	assert.Equal(t, []byte("second, longer version"), response.Data)
	assert.Equal(t, 2, fileServer.chunkCache.Len())
}

type memoryStream struct {
	io.Reader
	bytes.Buffer
	closed bool
}

func (stream *memoryStream) Read(p []byte) (int, error)  { return stream.Reader.Read(p) }
func (stream *memoryStream) Write(p []byte) (int, error) { return stream.Buffer.Write(p) }
func (stream *memoryStream) Close() error {
	stream.closed = true
	return nil
}

func TestHandleStream(t *testing.T) {
	fileServer := newTestServer(t)
	writeFile(t, filepath.Join(fileServer.RootPath(), "a.txt"), []byte("a"))

	stream := &memoryStream{Reader: bytes.NewReader(bytes.Join(lsRequest(t, "."), nil))}
	fileServer.handleStream(fileServer.idGenerator.Generate(), stream)
	assert.True(t, stream.closed)

	messageType, payload, err := helper.DecodeMessage(stream.Buffer.Bytes())
	require.NoError(t, err)
	assert.Equal(t, common.LsResponseType, messageType)
	assert.JSONEq(t, `{"dir":".","items":[["a.txt","File"]]}`, string(payload))

	t.Run("oversized request", func(t *testing.T) {
		stream := &memoryStream{Reader: io.LimitReader(zeroReader{}, helper.MaxFrameSize+1)}
		fileServer.handleStream(fileServer.idGenerator.Generate(), stream)
		messageType, payload, err := helper.DecodeMessage(stream.Buffer.Bytes())
		require.NoError(t, err)
		requireError(t, messageType, payload, "malformed message frame")
	})
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

func TestStartAndClose(t *testing.T) {
	tlsConf, err := transport.SelfSignedTLSConfig("localhost")
	require.NoError(t, err)

	fileServer, err := NewFileServer(Config{
		ListenOn:    "127.0.0.1:0",
		RootPath:    t.TempDir(),
		TLSConfig:   tlsConf,
		MaxInFlight: DefaultMaxInFlight,
	}, common.NopLogger{})
	require.NoError(t, err)
	assert.Nil(t, fileServer.Addr())

	require.NoError(t, fileServer.Start(context.Background()))
	assert.NotNil(t, fileServer.Addr())
	assert.Error(t, fileServer.Start(context.Background()))

	require.NoError(t, fileServer.Close())
	require.NoError(t, fileServer.Wait())
}
