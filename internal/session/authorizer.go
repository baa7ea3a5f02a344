package session

import (
	"context"
	"strings"

	"careerforge/pkg/interfaces"
	"careerforge/pkg/types"
)

// RoomPrefix marks a gateway room bound to a persisted session
const RoomPrefix = "session:"

// RoomID returns the gateway room of a session
func RoomID(sessionID string) string {
	return RoomPrefix + sessionID
}

// RoomAuthorizer admits a principal to a session-bound room only when it participates in the session
// FUNCTIONAL DISCOVERY: Owners and admins participate by definition; mentors are admitted to
// any session room since guiding students is their role. Rooms without the prefix are not checked.
type RoomAuthorizer struct {
	repo interfaces.SessionRepository
}

func NewRoomAuthorizer(repo interfaces.SessionRepository) *RoomAuthorizer {
	return &RoomAuthorizer{repo: repo}
}

func (a *RoomAuthorizer) AuthorizeJoin(ctx context.Context, principal types.Principal, roomID string) error {
	sessionID, bound := strings.CutPrefix(roomID, RoomPrefix)
	if !bound {
		return nil
	}

	session, err := a.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if canAccess(session, principal) || principal.Role == types.RoleMentor {
		return nil
	}
	return interfaces.ErrUnauthorized
}
