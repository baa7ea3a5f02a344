package interfaces

import (
	"context"

	"careerforge/pkg/types"
)

// Notifier delivers targeted out-of-band events on a user's personal channel
type Notifier interface {
	NotifyUser(ctx context.Context, userID string, event types.OutboundEvent) error
}

// RoomAuthorizer decides whether a principal may join a room
// FUNCTIONAL DISCOVERY: The default gateway grants every join; an authorizer narrows that
type RoomAuthorizer interface {
	AuthorizeJoin(ctx context.Context, principal types.Principal, roomID string) error
}
