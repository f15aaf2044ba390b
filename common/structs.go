package common

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// MessageType is the 2 byte code carried in every frame header.
type MessageType uint16

const (
	LsRequestType   MessageType = 0b00000001
	LsResponseType  MessageType = 0b00000010
	PutRequestType  MessageType = 0b00000100
	PutResponseType MessageType = 0b00001000
	GetRequestType  MessageType = 0b00010000
	GetResponseType MessageType = 0b00100000
	ErrorType       MessageType = 0b11110000
	// never sent, only produced when a code does not match
	InvalidType MessageType = 0b11111111
)

var messageTypeNames = map[MessageType]string{
	LsRequestType:   "LsRequest",
	LsResponseType:  "LsResponse",
	PutRequestType:  "PutRequest",
	PutResponseType: "PutResponse",
	GetRequestType:  "GetRequest",
	GetResponseType: "GetResponse",
	ErrorType:       "Error",
	InvalidType:     "Invalid",
}

// MessageTypeFromCode maps a raw code to its MessageType, InvalidType when unknown.
func MessageTypeFromCode(code uint16) MessageType {
	messageType := MessageType(code)
	if _, ok := messageTypeNames[messageType]; !ok || messageType == InvalidType {
		return InvalidType
	}
	return messageType
}

func (messageType MessageType) String() string {
	if name, ok := messageTypeNames[messageType]; ok {
		return name
	}
	return fmt.Sprintf("MessageType(0x%04x)", uint16(messageType))
}

type DirItemType string

const (
	DirItemDir  DirItemType = "Dir"
	DirItemFile DirItemType = "File"
)

// DirItem is encoded as a [name, type] pair.
type DirItem struct {
	Name string
	Type DirItemType
}

func (item DirItem) IsFile() bool {
	return item.Type == DirItemFile
}

func (item DirItem) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{item.Name, string(item.Type)})
}

func (item *DirItem) UnmarshalJSON(data []byte) error {
	var pair [2]string
	if err := json.Unmarshal(data, &pair); err != nil {
		return errors.Wrap(ErrPayload, err.Error())
	}
	item.Name, item.Type = pair[0], DirItemType(pair[1])
	return nil
}

type LsRequest struct {
	PathOnRemote string `json:"path_on_remote"`
}

type LsResponse struct {
	Dir   string    `json:"dir"`
	Items []DirItem `json:"items"`
}

// PutRequestMeta is rebuilt by the client on every round trip and always travels in front
// of an optional raw data segment.
type PutRequestMeta struct {
	FileName       string `json:"file_name"`
	RemoteDir      string `json:"remote_dir"`
	CurrChunkIndex uint64 `json:"curr_chunk_index"`
	IsDone         bool   `json:"is_done"`
}

type PutRequest struct {
	Meta PutRequestMeta
	Data []byte
}

type PutResponse struct {
	RemoteChunkSize ChunkSize `json:"remote_chunk_size"`
	IsDone          bool      `json:"is_done"`
}

type GetRequest struct {
	RemoteFilePath string    `json:"remote_file_path"`
	LocalChunkSize ChunkSize `json:"local_chunk_size"`
}

type GetResponseMeta struct {
	RemoteChunkSize ChunkSize
	CurrChunkIndex  uint64
}

type GetResponse struct {
	Meta GetResponseMeta
	Data []byte
}
