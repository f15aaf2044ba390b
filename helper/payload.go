package helper

import (
	"encoding/binary"
	"encoding/json"
	"net"

	"github.com/involk-secure-1609/lant/common"
	"github.com/pkg/errors"
)

// Codec turns a payload value into frame segments and back. The set of implementations is
// closed: TextCodec for small structured payloads, GetResponseCodec and PutRequestCodec for
// payloads that carry a raw chunk.
type Codec[T any] interface {
	Encode(value T) ([][]byte, error)
	Decode(payload []byte) (T, error)
}

// TextCodec carries the value as JSON with its field names.
type TextCodec[T any] struct{}

func (TextCodec[T]) Encode(value T) ([][]byte, error) {
	text, err := json.Marshal(value)
	if err != nil {
		return nil, errors.Wrap(common.ErrPayload, err.Error())
	}
	return [][]byte{text}, nil
}

func (TextCodec[T]) Decode(payload []byte) (T, error) {
	var value T
	if err := json.Unmarshal(payload, &value); err != nil {
		return value, errors.Wrapf(common.ErrPayload, "decoding failed: %v", err)
	}
	return value, nil
}

const sizeOfGetResponseMeta = 3 * 8

// GetResponseCodec lays the response out as
//
//	[total_chunks:8][rest_size:8][curr_chunk_index:8][raw data ...]
//
// all little endian.
type GetResponseCodec struct{}

func (GetResponseCodec) Encode(value common.GetResponse) ([][]byte, error) {
	meta := make([]byte, 0, sizeOfGetResponseMeta)
	meta = binary.LittleEndian.AppendUint64(meta, value.Meta.RemoteChunkSize.TotalChunks)
	meta = binary.LittleEndian.AppendUint64(meta, value.Meta.RemoteChunkSize.RestSize)
	meta = binary.LittleEndian.AppendUint64(meta, value.Meta.CurrChunkIndex)
	return [][]byte{meta, value.Data}, nil
}

func (GetResponseCodec) Decode(payload []byte) (common.GetResponse, error) {
	if len(payload) < sizeOfGetResponseMeta {
		return common.GetResponse{}, errors.Wrapf(common.ErrPayload, "get response needs %d bytes of meta, got %d", sizeOfGetResponseMeta, len(payload))
	}
	response := common.GetResponse{
		Meta: common.GetResponseMeta{
			RemoteChunkSize: common.ChunkSize{
				TotalChunks: binary.LittleEndian.Uint64(payload[0:8]),
				RestSize:    binary.LittleEndian.Uint64(payload[8:16]),
			},
			CurrChunkIndex: binary.LittleEndian.Uint64(payload[16:24]),
		},
		Data: payload[sizeOfGetResponseMeta:],
	}
	return response, nil
}

// PutRequestCodec lays the request out as
//
//	[meta length:8 LE][meta JSON][raw data ...]
type PutRequestCodec struct{}

func (PutRequestCodec) Encode(value common.PutRequest) ([][]byte, error) {
	metaText, err := json.Marshal(value.Meta)
	if err != nil {
		return nil, errors.Wrap(common.ErrPayload, err.Error())
	}
	meta := make([]byte, 0, 8+len(metaText))
	meta = binary.LittleEndian.AppendUint64(meta, uint64(len(metaText)))
	meta = append(meta, metaText...)
	return [][]byte{meta, value.Data}, nil
}

func (PutRequestCodec) Decode(payload []byte) (common.PutRequest, error) {
	if len(payload) < 8 {
		return common.PutRequest{}, errors.Wrap(common.ErrPayload, "put request is missing the meta length")
	}
	metaSize := binary.LittleEndian.Uint64(payload[:8])
	if metaSize > uint64(len(payload)-8) {
		return common.PutRequest{}, errors.Wrapf(common.ErrPayload, "put request meta length %d exceeds payload of %d bytes", metaSize, len(payload)-8)
	}

	var meta common.PutRequestMeta
	if err := json.Unmarshal(payload[8:8+metaSize], &meta); err != nil {
		return common.PutRequest{}, errors.Wrapf(common.ErrPayload, "decoding failed: %v", err)
	}
	return common.PutRequest{Meta: meta, Data: payload[8+metaSize:]}, nil
}

// EncodePayload runs codec over value and frames the result as messageType.
func EncodePayload[T any](codec Codec[T], messageType common.MessageType, value T) (net.Buffers, error) {
	payload, err := codec.Encode(value)
	if err != nil {
		return nil, err
	}
	return EncodeMessage(messageType, payload), nil
}
