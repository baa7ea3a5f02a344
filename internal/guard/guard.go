// Package guard provides keyed mutual exclusion for mutating operations.
//
// A key names an operation on a resource ("append:<sessionID>"). While a marker for the
// key is live every other Acquire fails with interfaces.ErrOperationInProgress. Markers
// expire after a TTL so an abandoned operation cannot wedge its resource forever.
package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"careerforge/pkg/interfaces"
)

const (
	// DefaultTTL bounds how long an abandoned marker blocks its key
	DefaultTTL = 5 * time.Minute

	// DefaultSweepInterval is how often the memory backend purges stale markers
	DefaultSweepInterval = 30 * time.Second
)

// Operation names used across the engine
const (
	OpAppend         = "append"
	OpResolveSession = "resolve-session"
	OpStartQuiz      = "start-quiz"
	OpQuizAnswer     = "quiz-answer"
)

// Key identifies one logical resource under mutation
type Key struct {
	Operation  string
	ResourceID string
}

func (k Key) String() string {
	return k.Operation + ":" + k.ResourceID
}

func (k Key) validate() error {
	if k.Operation == "" || k.ResourceID == "" {
		return ErrInvalidKey
	}
	return nil
}

// Token proves a successful Acquire
// FUNCTIONAL DISCOVERY: Release matches on MarkerID so a holder whose marker was
// force-expired cannot free the marker of the next holder
type Token struct {
	Key       Key
	MarkerID  string
	StartedAt time.Time
}

// ActiveOperation is one entry of a ListActive snapshot
type ActiveOperation struct {
	Key       Key           `json:"-"`
	Name      string        `json:"key"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Guard is the keyed mutual-exclusion register
type Guard interface {
	// Acquire places a marker for key or fails with interfaces.ErrOperationInProgress
	Acquire(ctx context.Context, key Key) (Token, error)

	// Release removes the token's marker; releasing twice or after expiry is a no-op
	Release(ctx context.Context, token Token) error

	// ListActive returns live markers with their elapsed duration
	ListActive(ctx context.Context) ([]ActiveOperation, error)
}

// Run executes fn while holding key
// ARCHITECTURAL DISCOVERY: Release is deferred so it runs on success, on error, on panic
// and when ctx is cancelled mid-operation; the release itself ignores ctx cancellation
func Run(ctx context.Context, g Guard, key Key, fn func(ctx context.Context) error) (err error) {
	if g == nil {
		return ErrNilGuard
	}

	token, err := g.Acquire(ctx, key)
	if err != nil {
		return err
	}

	defer func() {
		releaseErr := g.Release(context.WithoutCancel(ctx), token)
		if releaseErr != nil && err == nil {
			err = fmt.Errorf("release %s: %w", key, releaseErr)
		}
	}()

	return fn(ctx)
}

// IsInProgress reports whether err means the key was already held
func IsInProgress(err error) bool {
	return errors.Is(err, interfaces.ErrOperationInProgress)
}

func inProgress(key Key) error {
	return fmt.Errorf("%w: %s", interfaces.ErrOperationInProgress, key)
}
