package hub

import "errors"

var (
	ErrHubAlreadyRunning = errors.New("hub is already running")
	ErrHubNotRunning     = errors.New("hub is not running")
	ErrInvalidRoom       = errors.New("room id is required")
	ErrNotSubscribed     = errors.New("bus has no subscriber")
	ErrBusClosed         = errors.New("bus is closed")
	ErrRelayUnavailable  = errors.New("relay transport unavailable")
)
