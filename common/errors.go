package common

import "github.com/pkg/errors"

// Define custom error types for better error identification
var (
	// malformed header or declared length
	ErrFrame = errors.New("malformed message frame")

	// malformed structured payload
	ErrPayload = errors.New("malformed message payload")

	// destination resolves outside the root, or the source is missing / not a regular file
	ErrPath = errors.New("path resolution failed")

	ErrAlreadyComplete = errors.New("the file transfer is already completed")

	// the receiving side already holds more bytes than the sending side
	ErrSizeMismatch = errors.New("destination is larger than the source")

	ErrUnsupportedRequest = errors.New("not supported message type")

	// the server answered with an Error message
	ErrRemote = errors.New("server reported an error")

	ErrTransport = errors.New("error on the underlying transport")

	ErrDialServer = errors.New("error while trying to establish a connection with the server")

	ErrIntendedResponseType = errors.New("error because response received is not of intended type")
)
