package interfaces_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"careerforge/pkg/interfaces"
	"careerforge/pkg/types"
)

// Mock implementations for testing

type mockVerifier struct{}

func (m *mockVerifier) Verify(ctx context.Context, credential string) (types.Principal, error) {
	return types.Principal{}, nil
}

type mockSessionLog struct{}

func (m *mockSessionLog) ResolveOrCreateSession(ctx context.Context, p types.Principal, sessionID, seedTitle string) (*types.Session, error) {
	return nil, nil
}
func (m *mockSessionLog) AppendMessages(ctx context.Context, sessionID string, p types.Principal, msgs []types.NewMessage) (*types.Session, error) {
	return nil, nil
}
func (m *mockSessionLog) GetSession(ctx context.Context, sessionID string, p types.Principal) (*types.Session, error) {
	return nil, nil
}
func (m *mockSessionLog) EndSession(ctx context.Context, sessionID string, p types.Principal) (*types.Session, error) {
	return nil, nil
}

type mockNotifier struct{}

func (m *mockNotifier) NotifyUser(ctx context.Context, userID string, event types.OutboundEvent) error {
	return nil
}

type mockAuthorizer struct{}

func (m *mockAuthorizer) AuthorizeJoin(ctx context.Context, p types.Principal, roomID string) error {
	return nil
}

type mockDB struct{}

func (m *mockDB) CreateSession(ctx context.Context, session *types.Session) error { return nil }
func (m *mockDB) GetSession(ctx context.Context, sessionID string) (*types.Session, error) {
	return nil, nil
}
func (m *mockDB) UpdateSession(ctx context.Context, session *types.Session) error { return nil }
func (m *mockDB) FindLatestOpenSession(ctx context.Context, userID string) (*types.Session, error) {
	return nil, nil
}
func (m *mockDB) CreateQuiz(ctx context.Context, quiz *types.QuizSession) error { return nil }
func (m *mockDB) GetQuiz(ctx context.Context, quizID string) (*types.QuizSession, error) {
	return nil, nil
}
func (m *mockDB) UpdateQuiz(ctx context.Context, quiz *types.QuizSession) error { return nil }
func (m *mockDB) FindActiveQuiz(ctx context.Context, userID string) (*types.QuizSession, error) {
	return nil, nil
}
func (m *mockDB) HealthCheck(ctx context.Context) error { return nil }
func (m *mockDB) Close() error                          { return nil }

// Architectural Validation Tests - Ensure interfaces are properly defined

func TestInterfaces_ArchitecturalCompliance(t *testing.T) {
	var _ interfaces.TokenVerifier = &mockVerifier{}
	var _ interfaces.SessionLog = &mockSessionLog{}
	var _ interfaces.Notifier = &mockNotifier{}
	var _ interfaces.RoomAuthorizer = &mockAuthorizer{}
	var _ interfaces.DatabaseManager = &mockDB{}

	// DatabaseManager must satisfy both repository contracts
	var db interfaces.DatabaseManager = &mockDB{}
	var _ interfaces.SessionRepository = db
	var _ interfaces.QuizRepository = db
}

func TestDatabaseManager_InterfaceContract(t *testing.T) {
	var db interfaces.DatabaseManager = &mockDB{}
	ctx := context.Background()

	_ = db.CreateSession(ctx, &types.Session{})
	_, _ = db.GetSession(ctx, "s1")
	_ = db.UpdateSession(ctx, &types.Session{})
	_, _ = db.FindLatestOpenSession(ctx, "u1")
	_ = db.CreateQuiz(ctx, &types.QuizSession{})
	_, _ = db.GetQuiz(ctx, "q1")
	_ = db.UpdateQuiz(ctx, &types.QuizSession{})
	_, _ = db.FindActiveQuiz(ctx, "u1")
	_ = db.HealthCheck(ctx)
	_ = db.Close()
}

// Functional Validation Tests - error taxonomy survives wrapping

func TestErrors_WrappedClassification(t *testing.T) {
	sentinels := []error{
		interfaces.ErrAuthentication,
		interfaces.ErrOperationInProgress,
		interfaces.ErrSessionNotFound,
		interfaces.ErrQuizNotFound,
		interfaces.ErrQuizCompleted,
		interfaces.ErrStageMismatch,
		interfaces.ErrPersistence,
		interfaces.ErrUnauthorized,
	}

	for _, sentinel := range sentinels {
		wrapped := fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", sentinel))
		if !errors.Is(wrapped, sentinel) {
			t.Errorf("errors.Is lost %v through wrapping", sentinel)
		}
		for _, other := range sentinels {
			if other != sentinel && errors.Is(wrapped, other) {
				t.Errorf("%v unexpectedly matched %v", sentinel, other)
			}
		}
	}
}
