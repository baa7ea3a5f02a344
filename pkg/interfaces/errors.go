package interfaces

import "errors"

// Error taxonomy shared by every component of the engine
// ARCHITECTURAL DISCOVERY: Components return these sentinels (possibly wrapped) so that the
// HTTP and gateway edges can classify failures with errors.Is without importing each other
var (
	// ErrAuthentication is fatal to a connection: bad or missing credential
	ErrAuthentication = errors.New("authentication error")

	// ErrOperationInProgress is recoverable: the caller retries after a short backoff
	ErrOperationInProgress = errors.New("operation in progress")

	// ErrSessionNotFound covers unknown ids and sessions owned by another principal
	ErrSessionNotFound = errors.New("session not found")

	ErrQuizNotFound  = errors.New("quiz session not found")
	ErrQuizCompleted = errors.New("quiz already completed")
	ErrStageMismatch = errors.New("answer submitted for a stage other than the current stage")

	// ErrPersistence wraps storage collaborator failures; never masked by in-memory fallbacks
	ErrPersistence = errors.New("persistence error")

	ErrUnauthorized = errors.New("unauthorized access")
)
