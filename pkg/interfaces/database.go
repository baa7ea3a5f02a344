package interfaces

import (
	"context"

	"careerforge/pkg/types"
)

// SessionRepository is the persistence collaborator for conversation sessions
// ARCHITECTURAL DISCOVERY: Load/save are atomic per entity but do NOT serialize concurrent
// writers; the concurrency guard above this interface provides that
type SessionRepository interface {
	// CreateSession inserts a new session row
	CreateSession(ctx context.Context, session *types.Session) error

	// GetSession loads a session with its full ordered message log; ErrSessionNotFound if absent
	GetSession(ctx context.Context, sessionID string) (*types.Session, error)

	// UpdateSession persists metadata and appends any messages not yet stored
	UpdateSession(ctx context.Context, session *types.Session) error

	// FindLatestOpenSession returns the most recently updated open session of a user,
	// or ErrSessionNotFound when the user has none
	FindLatestOpenSession(ctx context.Context, userID string) (*types.Session, error)
}

// QuizRepository is the persistence collaborator for assessment sessions
type QuizRepository interface {
	CreateQuiz(ctx context.Context, quiz *types.QuizSession) error

	// GetQuiz returns ErrQuizNotFound if absent
	GetQuiz(ctx context.Context, quizID string) (*types.QuizSession, error)

	UpdateQuiz(ctx context.Context, quiz *types.QuizSession) error

	// FindActiveQuiz returns the user's most recent unfinished quiz or ErrQuizNotFound
	FindActiveQuiz(ctx context.Context, userID string) (*types.QuizSession, error)
}

// DatabaseManager handles all database operations
// ARCHITECTURAL DISCOVERY: Single interface for all persistence operations
// enables consistent transaction handling and connection management
type DatabaseManager interface {
	SessionRepository
	QuizRepository

	// HealthCheck verifies database connectivity and basic operations
	HealthCheck(ctx context.Context) error

	// Close closes the database connection and cleans up resources
	Close() error
}
