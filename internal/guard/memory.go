package guard

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"careerforge/internal/logger"
)

type marker struct {
	id        string
	startedAt time.Time
}

// MemoryGuard keeps markers in a single mutex-protected map
// TECHNICAL DISCOVERY: Every read and write of the map happens under mu, including
// lazy expiry during Acquire and ListActive
type MemoryGuard struct {
	mu      sync.Mutex
	markers map[Key]marker
	ttl     time.Duration
	now     func() time.Time
	log     *logger.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMemoryGuard creates an in-process guard; ttl <= 0 selects DefaultTTL
func NewMemoryGuard(ttl time.Duration, log *logger.Logger) *MemoryGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logger.Nop()
	}
	return &MemoryGuard{
		markers: make(map[Key]marker),
		ttl:     ttl,
		now:     time.Now,
		log:     log.With("component", "guard", "backend", "memory"),
	}
}

func (g *MemoryGuard) Acquire(ctx context.Context, key Key) (Token, error) {
	if err := key.validate(); err != nil {
		return Token{}, err
	}
	if err := ctx.Err(); err != nil {
		return Token{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if m, held := g.markers[key]; held {
		if !g.expired(m, now) {
			return Token{}, inProgress(key)
		}
		g.forceExpireLocked(key, m, now)
	}

	m := marker{id: uuid.NewString(), startedAt: now}
	g.markers[key] = m
	return Token{Key: key, MarkerID: m.id, StartedAt: m.startedAt}, nil
}

func (g *MemoryGuard) Release(_ context.Context, token Token) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, held := g.markers[token.Key]
	if !held || m.id != token.MarkerID {
		return nil
	}
	delete(g.markers, token.Key)
	return nil
}

func (g *MemoryGuard) ListActive(_ context.Context) ([]ActiveOperation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	active := make([]ActiveOperation, 0, len(g.markers))
	for key, m := range g.markers {
		if g.expired(m, now) {
			g.forceExpireLocked(key, m, now)
			continue
		}
		active = append(active, ActiveOperation{
			Key:       key,
			Name:      key.String(),
			StartedAt: m.startedAt,
			Elapsed:   now.Sub(m.startedAt),
		})
	}

	sort.Slice(active, func(i, j int) bool {
		return active[i].StartedAt.Before(active[j].StartedAt)
	})
	return active, nil
}

// Sweep force-expires every stale marker and returns how many were removed
func (g *MemoryGuard) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	removed := 0
	for key, m := range g.markers {
		if g.expired(m, now) {
			g.forceExpireLocked(key, m, now)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until Close
func (g *MemoryGuard) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	g.done = make(chan struct{})

	go func() {
		defer close(g.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				g.Sweep()
			}
		}
	}()
}

// Close stops the sweeper and waits for it to exit
// It is safe to call Close even if StartSweeper was never called.
func (g *MemoryGuard) Close() error {
	if g.cancel != nil {
		g.cancel()
		<-g.done
		g.cancel = nil
	}
	return nil
}

func (g *MemoryGuard) expired(m marker, now time.Time) bool {
	return now.Sub(m.startedAt) > g.ttl
}

func (g *MemoryGuard) forceExpireLocked(key Key, m marker, now time.Time) {
	delete(g.markers, key)
	g.log.Warn("forced marker expiry",
		"key", key.String(),
		"age", now.Sub(m.startedAt).String(),
		"ttl", g.ttl.String(),
	)
}

var _ Guard = (*MemoryGuard)(nil)
