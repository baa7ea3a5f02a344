package types

import "errors"

// ARCHITECTURAL DISCOVERY: Specific error types enable proper error handling
// and user-friendly error messages throughout the system
var (
	ErrInvalidUserID      = errors.New("user ID must be 1-64 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidRole        = errors.New("role must be STUDENT, MENTOR or ADMIN")
	ErrInvalidRoomID      = errors.New("room ID must be 1-128 printable characters")
	ErrInvalidMessageRole = errors.New("message role must be 'user' or 'assistant'")
	ErrEmptyContent       = errors.New("message content cannot be empty")
	ErrContentTooLarge    = errors.New("message content exceeds 64KB limit")
	ErrEmptyAnswer        = errors.New("answer value cannot be empty")
)
