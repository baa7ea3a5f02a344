package interfaces

import (
	"context"

	"careerforge/pkg/types"
)

// SessionLog is the session log store contract consumed by the HTTP layer and the gateway
type SessionLog interface {
	// ResolveOrCreateSession loads the given session or the user's latest open one, creating it when absent
	ResolveOrCreateSession(ctx context.Context, principal types.Principal, sessionID, seedTitle string) (*types.Session, error)

	// AppendMessages appends in arrival order under the per-session guard
	AppendMessages(ctx context.Context, sessionID string, principal types.Principal, messages []types.NewMessage) (*types.Session, error)

	GetSession(ctx context.Context, sessionID string, principal types.Principal) (*types.Session, error)

	EndSession(ctx context.Context, sessionID string, principal types.Principal) (*types.Session, error)
}
