package session

import "errors"

// Session log errors; lookup failures use interfaces.ErrSessionNotFound
var (
	ErrSessionClosed  = errors.New("session has ended")
	ErrInvalidMessage = errors.New("invalid message")
	ErrNoMessages     = errors.New("at least one message is required")
)
