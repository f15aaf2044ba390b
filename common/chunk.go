package common

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// ChunkUnitSize is the fixed chunk window, 16 MiB.
const ChunkUnitSize uint64 = 4096 * 4096

// ChunkSize describes a file length as whole chunks plus the size of a trailing partial chunk.
// It is always derived from a real file length and never stored on its own.
//
// RestSize is zero both for an empty file and for a length that is an exact multiple of
// ChunkUnitSize; in the latter case the last chunk is full and counted once in TotalChunks.
type ChunkSize struct {
	TotalChunks uint64
	RestSize    uint64
}

// ChunkSizeFromLength converts a byte length into its chunk representation.
func ChunkSizeFromLength(length uint64) ChunkSize {
	totalChunks := length / ChunkUnitSize
	restSize := length % ChunkUnitSize
	if restSize != 0 {
		totalChunks++
	}
	return ChunkSize{TotalChunks: totalChunks, RestSize: restSize}
}

// FileChunkSize stats path and returns its ChunkSize, or the zero value if it cannot be stat'ed.
func FileChunkSize(path string) ChunkSize {
	info, err := os.Stat(path)
	if err != nil {
		return ChunkSize{}
	}
	return ChunkSizeFromLength(uint64(info.Size()))
}

// ChunkOffset returns the byte offset of the chunk at index.
func ChunkOffset(index uint64) uint64 {
	return index * ChunkUnitSize
}

// BoundedBufferSize caps a remaining byte count at one chunk.
func BoundedBufferSize(remaining uint64) uint64 {
	return min(remaining, ChunkUnitSize)
}

// IsValid reports whether c could have come from ChunkSizeFromLength.
func (c ChunkSize) IsValid() bool {
	if c.RestSize >= ChunkUnitSize {
		return false
	}
	return c.RestSize == 0 || c.TotalChunks > 0
}

func (c ChunkSize) IsEmpty() bool {
	return c.TotalChunks == 0
}

// IntegerChunks counts only the chunks that are full.
func (c ChunkSize) IntegerChunks() uint64 {
	if c.TotalChunks > 0 && c.RestSize > 0 {
		return c.TotalChunks - 1
	}
	return c.TotalChunks
}

func (c ChunkSize) TotalSize() uint64 {
	return c.IntegerChunks()*ChunkUnitSize + c.RestSize
}

// ResumeIndex is the chunk index the receiving side should get next. A partial last chunk is
// targeted again rather than skipped, since it may be the remains of an interrupted write.
func (c ChunkSize) ResumeIndex() uint64 {
	if c.RestSize != 0 {
		return c.TotalChunks - 1
	}
	return c.TotalChunks
}

// MarshalJSON keeps the two element array form used on the wire: [total_chunks, rest_size].
func (c ChunkSize) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]uint64{c.TotalChunks, c.RestSize})
}

func (c *ChunkSize) UnmarshalJSON(data []byte) error {
	var pair [2]uint64
	if err := json.Unmarshal(data, &pair); err != nil {
		return errors.Wrap(ErrPayload, err.Error())
	}
	c.TotalChunks, c.RestSize = pair[0], pair[1]
	return nil
}
