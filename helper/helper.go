package helper

import (
	"encoding/binary"
	"io"
	"net"

	"github.com/involk-secure-1609/lant/common"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Frame layout:
//
//	[magic:1][type:2 LE][payload length:8 LE][payload ...]
const (
	MessageMagic byte = 'l' ^ 'a' ^ 'n' ^ 't'

	sizeOfMagic       = 1
	sizeOfType        = 2
	sizeOfPayloadSize = 8
	SizeOfHeader      = sizeOfMagic + sizeOfType + sizeOfPayloadSize

	offsetOfType        = sizeOfMagic
	offsetOfPayloadSize = offsetOfType + sizeOfType
	offsetOfPayload     = offsetOfPayloadSize + sizeOfPayloadSize
)

// MaxMetaSize bounds the structured text carried in front of a chunk.
const MaxMetaSize = 64 * 1024

// MaxFrameSize is the largest frame either side will read off a stream: one chunk plus its metadata.
const MaxFrameSize = SizeOfHeader + 8 + MaxMetaSize + int64(common.ChunkUnitSize)

// EncodeMessage builds the header for payload and returns it followed by the payload segments.
// The segments are not copied into one buffer, net.Buffers hands them to the writer as they are.
func EncodeMessage(messageType common.MessageType, payload [][]byte) net.Buffers {
	payloadSize := lo.SumBy(payload, func(segment []byte) int { return len(segment) })

	header := make([]byte, SizeOfHeader)
	header[0] = MessageMagic
	binary.LittleEndian.PutUint16(header[offsetOfType:offsetOfPayloadSize], uint16(messageType))
	binary.LittleEndian.PutUint64(header[offsetOfPayloadSize:offsetOfPayload], uint64(payloadSize))

	message := make(net.Buffers, 0, len(payload)+1)
	message = append(message, header)
	for _, segment := range payload {
		if len(segment) > 0 {
			message = append(message, segment)
		}
	}
	return message
}

// EncodeErrorMessage wraps an error's text into an Error frame.
func EncodeErrorMessage(err error) net.Buffers {
	return EncodeMessage(common.ErrorType, [][]byte{[]byte(err.Error())})
}

// DecodeMessage validates the header of a complete frame and returns its type and payload.
// A frame without payload returns a nil payload.
func DecodeMessage(message []byte) (common.MessageType, []byte, error) {
	if len(message) < SizeOfHeader {
		return common.InvalidType, nil, errors.Wrapf(common.ErrFrame, "message header size invalid, got %d bytes", len(message))
	}

	if message[0] != MessageMagic {
		return common.InvalidType, nil, errors.Wrapf(common.ErrFrame, "message magic invalid, got %#x", message[0])
	}

	messageType := common.MessageTypeFromCode(binary.LittleEndian.Uint16(message[offsetOfType:offsetOfPayloadSize]))
	if messageType == common.InvalidType {
		return common.InvalidType, nil, errors.Wrap(common.ErrFrame, "message type invalid")
	}

	payloadSize := binary.LittleEndian.Uint64(message[offsetOfPayloadSize:offsetOfPayload])
	if payloadSize != uint64(len(message)-SizeOfHeader) {
		return common.InvalidType, nil, errors.Wrapf(common.ErrFrame,
			"message size invalid, header says %d bytes, got %d", payloadSize, len(message)-SizeOfHeader)
	}

	if payloadSize == 0 {
		return messageType, nil, nil
	}
	return messageType, message[offsetOfPayload:], nil
}

// ReadMessage reads r until EOF. Anything past limit bytes is rejected as a frame error.
func ReadMessage(r io.Reader, limit int64) ([]byte, error) {
	message, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, errors.Wrap(common.ErrTransport, err.Error())
	}
	if int64(len(message)) > limit {
		return nil, errors.Wrapf(common.ErrFrame, "message exceeds %d bytes", limit)
	}
	return message, nil
}

// WriteMessage writes every segment of message to w.
func WriteMessage(w io.Writer, message net.Buffers) error {
	if _, err := message.WriteTo(w); err != nil {
		return errors.Wrap(common.ErrTransport, err.Error())
	}
	return nil
}
