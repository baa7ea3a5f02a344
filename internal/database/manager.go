package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"

	"careerforge/internal/logger"
	dbconfig "careerforge/pkg/database"
	"careerforge/pkg/interfaces"
	"careerforge/pkg/types"
)

// sqlite uses ? placeholders, squirrel's default
var qb = sq.StatementBuilder.PlaceholderFormat(sq.Question)

var sessionColumns = []string{"id", "owner_user_id", "title", "next_seq", "created_at", "updated_at", "ended_at"}

var messageColumns = []string{"seq", "id", "role", "content", "timestamp"}

var quizColumns = []string{"id", "user_id", "current_stage", "answers", "completed_at", "results", "created_at", "updated_at"}

// Manager implements interfaces.DatabaseManager on sqlite
type Manager struct {
	db           *sql.DB
	writeChannel chan writeOperation // TECHNICAL: Single-writer pattern for SQLite
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex // TECHNICAL: Protect closed status
	log          *logger.Logger
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewManager opens the database, applies the embedded migrations and validates the schema
func NewManager(ctx context.Context, config *dbconfig.Config, log *logger.Logger) (*Manager, error) {
	db, err := dbconfig.Open(config)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// STEP 1: Schema evolution from the migrations embedded in the binary
	if err := dbconfig.NewMigrationManager(db, dbconfig.Migrations, dbconfig.MigrationsDir).ApplyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	// STEP 2: Refuse to serve against a schema the row mapping does not expect
	if err := dbconfig.NewSchemaValidator(db).Validate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	return newManager(db, log), nil
}

// newManager wraps an open handle and starts the writer goroutine
func newManager(db *sql.DB, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	m := &Manager{
		db:           db,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
		log:          log.With("component", "database"),
	}

	// ARCHITECTURAL DISCOVERY: Single-writer goroutine prevents SQLite write contention
	m.wg.Add(1)
	go m.writeLoop()

	return m
}

// writeLoop processes all write operations in a single goroutine
// Failures are returned to the caller unretried; retry policy belongs to the caller.
func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			err := op.operation(m.db)
			if err != nil {
				m.log.Error("database write failed", "error", err)
			}
			op.result <- err

		case <-m.shutdown:
			m.log.Debug("database write loop shutting down")
			// answer anything still queued so no caller blocks on its result
			for {
				select {
				case op := <-m.writeChannel:
					op.result <- fmt.Errorf("%w: database manager is shutting down", interfaces.ErrPersistence)
				default:
					return
				}
			}
		}
	}
}

// executeWrite queues a write operation and waits for completion
func (m *Manager) executeWrite(ctx context.Context, operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("%w: database manager is closed", interfaces.ErrPersistence)
	}
	m.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(30 * time.Second):
		return fmt.Errorf("%w: write operation timeout", interfaces.ErrPersistence)
	case <-m.shutdown:
		return fmt.Errorf("%w: database manager is shutting down", interfaces.ErrPersistence)
	}

	// the writer always answers once the operation was accepted
	return <-result
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", interfaces.ErrPersistence, op, err)
}

// CreateSession inserts a session and any messages it already carries
func (m *Manager) CreateSession(ctx context.Context, session *types.Session) error {
	return m.executeWrite(ctx, func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return persistErr("begin transaction", err)
		}
		defer func() { _ = tx.Rollback() }()

		_, err = qb.Insert("sessions").
			Columns(sessionColumns...).
			Values(session.ID, session.OwnerUserID, session.Title, session.NextSeq,
				session.CreatedAt, session.UpdatedAt, nullTime(session.EndedAt)).
			RunWith(tx).ExecContext(ctx)
		if err != nil {
			return persistErr("insert session", err)
		}

		if err := insertMessages(ctx, tx, session.ID, session.Messages); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return persistErr("commit session creation", err)
		}
		return nil
	})
}

// GetSession loads the session row and its ordered message log
// ARCHITECTURAL DISCOVERY: Read operations can be concurrent - no need for writeChannel
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*types.Session, error) {
	row := qb.Select(sessionColumns...).
		From("sessions").
		Where(sq.Eq{"id": sessionID}).
		RunWith(m.db).QueryRowContext(ctx)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrSessionNotFound
	}
	if err != nil {
		return nil, persistErr("query session", err)
	}

	messages, err := m.loadMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.Messages = messages
	return session, nil
}

// UpdateSession persists session metadata and appends messages not yet stored
// FUNCTIONAL DISCOVERY: Stored messages are immutable; only rows past the stored max seq are inserted
func (m *Manager) UpdateSession(ctx context.Context, session *types.Session) error {
	return m.executeWrite(ctx, func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return persistErr("begin transaction", err)
		}
		defer func() { _ = tx.Rollback() }()

		res, err := qb.Update("sessions").
			Set("title", session.Title).
			Set("next_seq", session.NextSeq).
			Set("updated_at", session.UpdatedAt).
			Set("ended_at", nullTime(session.EndedAt)).
			Where(sq.Eq{"id": session.ID}).
			RunWith(tx).ExecContext(ctx)
		if err != nil {
			return persistErr("update session", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return interfaces.ErrSessionNotFound
		}

		var maxSeq int64
		err = qb.Select("COALESCE(MAX(seq), 0)").
			From("session_messages").
			Where(sq.Eq{"session_id": session.ID}).
			RunWith(tx).QueryRowContext(ctx).Scan(&maxSeq)
		if err != nil {
			return persistErr("query message high-water mark", err)
		}

		var pending []types.Message
		for _, msg := range session.Messages {
			if msg.Seq > maxSeq {
				pending = append(pending, msg)
			}
		}
		if err := insertMessages(ctx, tx, session.ID, pending); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return persistErr("commit session update", err)
		}
		return nil
	})
}

// FindLatestOpenSession returns the user's most recently updated open session
func (m *Manager) FindLatestOpenSession(ctx context.Context, userID string) (*types.Session, error) {
	var id string
	err := qb.Select("id").
		From("sessions").
		Where(sq.Eq{"owner_user_id": userID, "ended_at": nil}).
		OrderBy("updated_at DESC", "created_at DESC").
		Limit(1).
		RunWith(m.db).QueryRowContext(ctx).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrSessionNotFound
	}
	if err != nil {
		return nil, persistErr("query latest open session", err)
	}
	return m.GetSession(ctx, id)
}

func (m *Manager) loadMessages(ctx context.Context, sessionID string) ([]types.Message, error) {
	rows, err := qb.Select(messageColumns...).
		From("session_messages").
		Where(sq.Eq{"session_id": sessionID}).
		OrderBy("seq ASC").
		RunWith(m.db).QueryContext(ctx)
	if err != nil {
		return nil, persistErr("query messages", err)
	}
	defer func() { _ = rows.Close() }()

	messages := make([]types.Message, 0)
	for rows.Next() {
		var msg types.Message
		if err := rows.Scan(&msg.Seq, &msg.ID, &msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, persistErr("scan message row", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterate message rows", err)
	}
	return messages, nil
}

// maxRowsPerInsert keeps a multi-row insert under SQLite's 32766 bound-variable limit
const maxRowsPerInsert = 32766 / messageInsertColumns

const messageInsertColumns = 6

// insertMessages writes messages in chunks inside the caller's transaction
func insertMessages(ctx context.Context, tx *sql.Tx, sessionID string, messages []types.Message) error {
	for len(messages) > 0 {
		n := min(len(messages), maxRowsPerInsert)
		insert := qb.Insert("session_messages").
			Options("OR IGNORE").
			Columns("session_id", "seq", "id", "role", "content", "timestamp")
		for _, msg := range messages[:n] {
			insert = insert.Values(sessionID, msg.Seq, msg.ID, msg.Role, msg.Content, msg.Timestamp)
		}
		if _, err := insert.RunWith(tx).ExecContext(ctx); err != nil {
			return persistErr("insert messages", err)
		}
		messages = messages[n:]
	}
	return nil
}

func scanSession(row sq.RowScanner) (*types.Session, error) {
	var (
		session types.Session
		endedAt sql.NullTime
	)
	err := row.Scan(&session.ID, &session.OwnerUserID, &session.Title, &session.NextSeq,
		&session.CreatedAt, &session.UpdatedAt, &endedAt)
	if err != nil {
		return nil, err
	}
	if endedAt.Valid {
		t := endedAt.Time
		session.EndedAt = &t
	}
	return &session, nil
}

// CreateQuiz inserts a quiz session
func (m *Manager) CreateQuiz(ctx context.Context, quiz *types.QuizSession) error {
	answers, results, err := encodeQuiz(quiz)
	if err != nil {
		return err
	}
	return m.executeWrite(ctx, func(db *sql.DB) error {
		_, err := qb.Insert("quizzes").
			Columns(quizColumns...).
			Values(quiz.ID, quiz.UserID, string(quiz.CurrentStage), answers,
				nullTime(quiz.CompletedAt), results, quiz.CreatedAt, quiz.UpdatedAt).
			RunWith(db).ExecContext(ctx)
		if err != nil {
			return persistErr("insert quiz", err)
		}
		return nil
	})
}

// GetQuiz loads a quiz session
func (m *Manager) GetQuiz(ctx context.Context, quizID string) (*types.QuizSession, error) {
	row := qb.Select(quizColumns...).
		From("quizzes").
		Where(sq.Eq{"id": quizID}).
		RunWith(m.db).QueryRowContext(ctx)
	return scanQuiz(row)
}

// UpdateQuiz persists the full quiz state
func (m *Manager) UpdateQuiz(ctx context.Context, quiz *types.QuizSession) error {
	answers, results, err := encodeQuiz(quiz)
	if err != nil {
		return err
	}
	return m.executeWrite(ctx, func(db *sql.DB) error {
		res, err := qb.Update("quizzes").
			Set("current_stage", string(quiz.CurrentStage)).
			Set("answers", answers).
			Set("completed_at", nullTime(quiz.CompletedAt)).
			Set("results", results).
			Set("updated_at", quiz.UpdatedAt).
			Where(sq.Eq{"id": quiz.ID}).
			RunWith(db).ExecContext(ctx)
		if err != nil {
			return persistErr("update quiz", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return interfaces.ErrQuizNotFound
		}
		return nil
	})
}

// FindActiveQuiz returns the user's most recent unfinished quiz
func (m *Manager) FindActiveQuiz(ctx context.Context, userID string) (*types.QuizSession, error) {
	row := qb.Select(quizColumns...).
		From("quizzes").
		Where(sq.Eq{"user_id": userID, "completed_at": nil}).
		OrderBy("updated_at DESC", "created_at DESC").
		Limit(1).
		RunWith(m.db).QueryRowContext(ctx)
	return scanQuiz(row)
}

func scanQuiz(row sq.RowScanner) (*types.QuizSession, error) {
	var (
		quiz        types.QuizSession
		stage       string
		answersJSON string
		resultsJSON sql.NullString
		completedAt sql.NullTime
	)
	err := row.Scan(&quiz.ID, &quiz.UserID, &stage, &answersJSON, &completedAt, &resultsJSON,
		&quiz.CreatedAt, &quiz.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrQuizNotFound
	}
	if err != nil {
		return nil, persistErr("query quiz", err)
	}

	quiz.CurrentStage = types.Stage(stage)
	if err := json.Unmarshal([]byte(answersJSON), &quiz.Answers); err != nil {
		return nil, persistErr("decode quiz answers", err)
	}
	if quiz.Answers == nil {
		quiz.Answers = make(map[types.Stage][]types.Answer)
	}
	if completedAt.Valid {
		t := completedAt.Time
		quiz.CompletedAt = &t
	}
	if resultsJSON.Valid && resultsJSON.String != "" {
		quiz.Results = &types.QuizResults{}
		if err := json.Unmarshal([]byte(resultsJSON.String), quiz.Results); err != nil {
			return nil, persistErr("decode quiz results", err)
		}
	}
	return &quiz, nil
}

// TECHNICAL DISCOVERY: JSON columns keep the per-stage answer lists in one row so a quiz
// update is a single-row write
func encodeQuiz(quiz *types.QuizSession) (string, sql.NullString, error) {
	answers := quiz.Answers
	if answers == nil {
		answers = map[types.Stage][]types.Answer{}
	}
	a, err := json.Marshal(answers)
	if err != nil {
		return "", sql.NullString{}, persistErr("encode quiz answers", err)
	}

	var results sql.NullString
	if quiz.Results != nil {
		r, err := json.Marshal(quiz.Results)
		if err != nil {
			return "", sql.NullString{}, persistErr("encode quiz results", err)
		}
		results = sql.NullString{String: string(r), Valid: true}
	}
	return string(a), results, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// HealthCheck validates database connectivity
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return persistErr("database ping", err)
	}

	var count int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&count); err != nil {
		return persistErr("database read test", err)
	}
	return nil
}

// Close shuts down the database manager
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

var _ interfaces.DatabaseManager = (*Manager)(nil)
