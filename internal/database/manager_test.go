package database

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	dbconfig "careerforge/pkg/database"
	"careerforge/pkg/interfaces"
	"careerforge/pkg/types"
)

func setupTestDB(t *testing.T) *Manager {
	t.Helper()
	config := dbconfig.DefaultConfig()
	config.DatabasePath = filepath.Join(t.TempDir(), "test.db")

	m, err := NewManager(context.Background(), config, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := m.Close(); err != nil {
			t.Logf("Failed to close manager: %v", err)
		}
	})
	return m
}

func newSession(id, owner string, at time.Time) *types.Session {
	return &types.Session{
		ID:          id,
		OwnerUserID: owner,
		Title:       "Resume Review",
		Messages:    []types.Message{},
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}

func appendMsg(s *types.Session, role, content string) {
	s.NextSeq++
	s.Messages = append(s.Messages, types.Message{
		ID:        fmt.Sprintf("%s-%d", s.ID, s.NextSeq),
		Seq:       s.NextSeq,
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
}

// Functional Validation Tests - sessions

func TestManager_SessionLifecycle(t *testing.T) {
	m := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	session := newSession("s1", "u1", now)
	require.NoError(t, m.CreateSession(ctx, session))

	appendMsg(session, types.MessageRoleUser, "help with my resume")
	appendMsg(session, types.MessageRoleAssistant, "sure")
	require.NoError(t, m.UpdateSession(ctx, session))

	appendMsg(session, types.MessageRoleUser, "thanks")
	session.UpdatedAt = now.Add(time.Second)
	require.NoError(t, m.UpdateSession(ctx, session))

	loaded, err := m.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", loaded.OwnerUserID)
	assert.Equal(t, int64(3), loaded.NextSeq)
	require.Len(t, loaded.Messages, 3)
	for i, msg := range loaded.Messages {
		assert.Equal(t, int64(i+1), msg.Seq)
		assert.Equal(t, session.Messages[i].ID, msg.ID)
		assert.Equal(t, session.Messages[i].Content, msg.Content)
	}
	assert.True(t, loaded.IsOpen())
	assert.WithinDuration(t, now.Add(time.Second), loaded.UpdatedAt, time.Millisecond)
}

func TestManager_UpdateSession_LargeBatch(t *testing.T) {
	m := setupTestDB(t)
	ctx := context.Background()

	session := newSession("bulk", "u1", time.Now().UTC())
	require.NoError(t, m.CreateSession(ctx, session))

	// Past the bound-variable limit of a single multi-row insert
	total := 2*maxRowsPerInsert + 17
	for i := 0; i < total; i++ {
		appendMsg(session, types.MessageRoleUser, "a")
	}
	require.NoError(t, m.UpdateSession(ctx, session))

	loaded, err := m.GetSession(ctx, "bulk")
	require.NoError(t, err)
	require.Len(t, loaded.Messages, total)
	assert.Equal(t, int64(1), loaded.Messages[0].Seq)
	assert.Equal(t, int64(total), loaded.Messages[total-1].Seq)
}

func TestManager_FindLatestOpenSession(t *testing.T) {
	m := setupTestDB(t)
	ctx := context.Background()
	base := time.Now().UTC()

	_, err := m.FindLatestOpenSession(ctx, "u1")
	require.ErrorIs(t, err, interfaces.ErrSessionNotFound)

	require.NoError(t, m.CreateSession(ctx, newSession("old", "u1", base)))
	require.NoError(t, m.CreateSession(ctx, newSession("new", "u1", base.Add(time.Minute))))
	require.NoError(t, m.CreateSession(ctx, newSession("other", "u2", base.Add(time.Hour))))

	latest, err := m.FindLatestOpenSession(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "new", latest.ID)

	ended := base.Add(2 * time.Minute)
	latest.EndedAt = &ended
	latest.UpdatedAt = ended
	require.NoError(t, m.UpdateSession(ctx, latest))

	latest, err = m.FindLatestOpenSession(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "old", latest.ID, "ended sessions are skipped")

	reloaded, err := m.GetSession(ctx, "new")
	require.NoError(t, err)
	require.NotNil(t, reloaded.EndedAt)
	assert.False(t, reloaded.IsOpen())
}

func TestManager_SessionNotFound(t *testing.T) {
	m := setupTestDB(t)
	ctx := context.Background()

	_, err := m.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, interfaces.ErrSessionNotFound)

	err = m.UpdateSession(ctx, newSession("missing", "u1", time.Now()))
	assert.ErrorIs(t, err, interfaces.ErrSessionNotFound)
}

func TestManager_ConcurrentCreates(t *testing.T) {
	m := setupTestDB(t)
	ctx := context.Background()

	var eg errgroup.Group
	for i := 0; i < 20; i++ {
		eg.Go(func() error {
			return m.CreateSession(ctx, newSession(fmt.Sprintf("s%d", i), "u1", time.Now().UTC()))
		})
	}
	require.NoError(t, eg.Wait())

	for i := 0; i < 20; i++ {
		_, err := m.GetSession(ctx, fmt.Sprintf("s%d", i))
		assert.NoError(t, err)
	}
}

// Functional Validation Tests - quizzes

func TestManager_QuizLifecycle(t *testing.T) {
	m := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := m.FindActiveQuiz(ctx, "u1")
	require.ErrorIs(t, err, interfaces.ErrQuizNotFound)

	quiz := &types.QuizSession{
		ID:           "q1",
		UserID:       "u1",
		CurrentStage: types.StageSkillsAssessment,
		Answers:      map[types.Stage][]types.Answer{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, m.CreateQuiz(ctx, quiz))

	active, err := m.FindActiveQuiz(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "q1", active.ID)
	assert.NotNil(t, active.Answers)

	quiz.Answers[types.StageSkillsAssessment] = []types.Answer{{QuestionID: "s1", Value: "python, sql", AnsweredAt: now}}
	quiz.CurrentStage = types.StageCompleted
	quiz.CompletedAt = &now
	quiz.Results = &types.QuizResults{Matches: []types.CareerMatch{{Title: "Software Engineer", Industry: "Technology", Score: 71}}}
	require.NoError(t, m.UpdateQuiz(ctx, quiz))

	loaded, err := m.GetQuiz(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, types.StageCompleted, loaded.CurrentStage)
	require.Len(t, loaded.Answers[types.StageSkillsAssessment], 1)
	assert.Equal(t, "python, sql", loaded.Answers[types.StageSkillsAssessment][0].Value)
	require.NotNil(t, loaded.Results)
	assert.Equal(t, 71, loaded.Results.Matches[0].Score)
	require.NotNil(t, loaded.CompletedAt)

	_, err = m.FindActiveQuiz(ctx, "u1")
	assert.ErrorIs(t, err, interfaces.ErrQuizNotFound, "completed quizzes are not active")

	err = m.UpdateQuiz(ctx, &types.QuizSession{ID: "missing", CurrentStage: types.StageSkillsAssessment})
	assert.ErrorIs(t, err, interfaces.ErrQuizNotFound)
}

func TestManager_HealthCheckAndClose(t *testing.T) {
	m := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, m.HealthCheck(ctx))
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	err := m.CreateSession(ctx, newSession("late", "u1", time.Now()))
	assert.ErrorIs(t, err, interfaces.ErrPersistence)
}

// Technical Validation Tests - collaborator failures surface as persistence errors

func newMockManager(t *testing.T) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	m := newManager(db, nil)
	t.Cleanup(func() { _ = m.Close() })
	return m, mock
}

func TestManager_GetSession_DBError(t *testing.T) {
	m, mock := newMockManager(t)

	mock.ExpectQuery("SELECT (.+) FROM sessions WHERE id = ?").
		WithArgs("s1").
		WillReturnError(errors.New("connection refused"))

	_, err := m.GetSession(context.Background(), "s1")
	assert.ErrorIs(t, err, interfaces.ErrPersistence)
	assert.NotErrorIs(t, err, interfaces.ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManager_UpdateSession_RollsBackOnInsertFailure(t *testing.T) {
	m, mock := newMockManager(t)
	session := newSession("s1", "u1", time.Now().UTC())
	appendMsg(session, types.MessageRoleUser, "hello")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE sessions SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT COALESCE\\(MAX\\(seq\\), 0\\) FROM session_messages").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(0))
	mock.ExpectExec("INSERT OR IGNORE INTO session_messages").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err := m.UpdateSession(context.Background(), session)
	assert.ErrorIs(t, err, interfaces.ErrPersistence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManager_GetQuiz_CorruptAnswers(t *testing.T) {
	m, mock := newMockManager(t)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM quizzes WHERE id = ?").
		WithArgs("q1").
		WillReturnRows(sqlmock.NewRows(quizColumns).
			AddRow("q1", "u1", "SKILLS_ASSESSMENT", "{not json", nil, nil, now, now))

	_, err := m.GetQuiz(context.Background(), "q1")
	assert.ErrorIs(t, err, interfaces.ErrPersistence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManager_UpdateQuiz_DBError(t *testing.T) {
	m, mock := newMockManager(t)

	mock.ExpectExec("UPDATE quizzes SET").WillReturnError(errors.New("database is locked"))

	err := m.UpdateQuiz(context.Background(), &types.QuizSession{ID: "q1", CurrentStage: types.StageCareerGoals})
	assert.ErrorIs(t, err, interfaces.ErrPersistence)
	assert.NoError(t, mock.ExpectationsWereMet())
}
