package websocket

import "errors"

// Connection-related errors
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSlowConsumer     = errors.New("outbound buffer full, connection dropped")
)

// Registry-related errors
var (
	ErrNilConnection = errors.New("connection cannot be nil")
	ErrNotRegistered = errors.New("connection is not registered")
)

// Handler-related errors
var (
	ErrMissingCredential = errors.New("no credential in handshake")
)
