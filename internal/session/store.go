package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"careerforge/internal/guard"
	"careerforge/internal/logger"
	"careerforge/pkg/interfaces"
	"careerforge/pkg/types"
)

// Store owns the ordered message log of every conversation session
// ARCHITECTURAL DISCOVERY: The repository only promises atomic single-entity load/save;
// every read-modify-write here runs under a guard key so concurrent writers never
// overwrite each other's snapshot
type Store struct {
	repo  interfaces.SessionRepository
	guard guard.Guard
	log   *logger.Logger
	now   func() time.Time
}

// NewStore creates a session log store
func NewStore(repo interfaces.SessionRepository, g guard.Guard, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{
		repo:  repo,
		guard: g,
		log:   log.With("component", "session"),
		now:   time.Now,
	}
}

// canAccess is true for the owner and for admins
func canAccess(session *types.Session, principal types.Principal) bool {
	return session.OwnerUserID == principal.UserID || principal.Role == types.RoleAdmin
}

func (s *Store) load(ctx context.Context, sessionID string, principal types.Principal) (*types.Session, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	// FUNCTIONAL DISCOVERY: Foreign sessions are reported as not found so ids cannot be enumerated
	if !canAccess(session, principal) {
		return nil, interfaces.ErrSessionNotFound
	}
	return session, nil
}

// ResolveOrCreateSession returns the requested session, or the user's latest open session,
// creating one titled from seedTitle when the user has none
func (s *Store) ResolveOrCreateSession(ctx context.Context, principal types.Principal, sessionID, seedTitle string) (*types.Session, error) {
	if !types.IsValidUserID(principal.UserID) {
		return nil, types.ErrInvalidUserID
	}

	if sessionID != "" {
		return s.load(ctx, sessionID, principal)
	}

	// Two first interactions racing must not create two sessions
	var session *types.Session
	key := guard.Key{Operation: guard.OpResolveSession, ResourceID: principal.UserID}
	err := guard.Run(ctx, s.guard, key, func(ctx context.Context) error {
		existing, err := s.repo.FindLatestOpenSession(ctx, principal.UserID)
		if err == nil {
			session = existing
			return nil
		}
		if !errors.Is(err, interfaces.ErrSessionNotFound) {
			return err
		}

		now := s.now().UTC()
		session = &types.Session{
			ID:          uuid.NewString(),
			OwnerUserID: principal.UserID,
			Title:       GenerateTitle(seedTitle),
			Messages:    []types.Message{},
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.repo.CreateSession(ctx, session); err != nil {
			return err
		}
		s.log.Info("session created", "session_id", session.ID, "user_id", principal.UserID, "title", session.Title)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// AppendMessages appends newMessages in order and returns the updated session
func (s *Store) AppendMessages(ctx context.Context, sessionID string, principal types.Principal, newMessages []types.NewMessage) (*types.Session, error) {
	if len(newMessages) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, ErrNoMessages)
	}
	for i := range newMessages {
		if err := newMessages[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: message %d: %w", ErrInvalidMessage, i, err)
		}
	}

	var updated *types.Session
	err := guard.Run(ctx, s.guard, guard.Key{Operation: guard.OpAppend, ResourceID: sessionID}, func(ctx context.Context) error {
		session, err := s.load(ctx, sessionID, principal)
		if err != nil {
			return err
		}
		if !session.IsOpen() {
			return ErrSessionClosed
		}

		now := s.now().UTC()
		for _, nm := range newMessages {
			session.NextSeq++
			session.Messages = append(session.Messages, types.Message{
				ID:        messageID(session.ID, session.NextSeq),
				Seq:       session.NextSeq,
				Role:      nm.Role,
				Content:   nm.Content,
				Timestamp: now,
			})
		}
		session.UpdatedAt = now

		if err := s.repo.UpdateSession(ctx, session); err != nil {
			return err
		}
		updated = session
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("messages appended", "session_id", sessionID, "count", len(newMessages), "next_seq", updated.NextSeq)
	return updated, nil
}

// GetSession returns a session readable by the principal
func (s *Store) GetSession(ctx context.Context, sessionID string, principal types.Principal) (*types.Session, error) {
	return s.load(ctx, sessionID, principal)
}

// EndSession closes a session; ending a closed session returns it unchanged
func (s *Store) EndSession(ctx context.Context, sessionID string, principal types.Principal) (*types.Session, error) {
	var ended *types.Session
	err := guard.Run(ctx, s.guard, guard.Key{Operation: guard.OpAppend, ResourceID: sessionID}, func(ctx context.Context) error {
		session, err := s.load(ctx, sessionID, principal)
		if err != nil {
			return err
		}
		if !session.IsOpen() {
			ended = session
			return nil
		}

		now := s.now().UTC()
		session.EndedAt = &now
		session.UpdatedAt = now
		if err := s.repo.UpdateSession(ctx, session); err != nil {
			return err
		}
		ended = session
		s.log.Info("session ended", "session_id", sessionID, "messages", len(session.Messages))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ended, nil
}

// messageID is stable and unique within a session because seq is never reused
func messageID(sessionID string, seq int64) string {
	return fmt.Sprintf("%s-%d", sessionID, seq)
}

var _ interfaces.SessionLog = (*Store)(nil)
