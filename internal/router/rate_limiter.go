package router

import (
	"sync"
	"time"
)

// DefaultMessagesPerMinute is the per-user send-message budget
const DefaultMessagesPerMinute = 100

// RateLimiter implements per-user fixed-window rate limiting
// ARCHITECTURAL DISCOVERY: Per-user state tracking with periodic cleanup prevents memory leaks
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	clients map[string]*ClientLimit
	now     func() time.Time
}

// ClientLimit tracks rate limiting for a single user
type ClientLimit struct {
	messageCount int
	windowStart  time.Time
}

// NewRateLimiter creates a limiter allowing limit events per minute
func NewRateLimiter(limit int) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  time.Minute,
		clients: make(map[string]*ClientLimit),
		now:     time.Now,
	}
}

// Allow reports whether the user may send another event in the current window
func (rl *RateLimiter) Allow(userID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	limit, exists := rl.clients[userID]
	if !exists {
		rl.clients[userID] = &ClientLimit{messageCount: 1, windowStart: now}
		return true
	}

	// TECHNICAL DISCOVERY: Window resets exactly every minute for consistent rate limiting
	if now.Sub(limit.windowStart) >= rl.window {
		limit.messageCount = 1
		limit.windowStart = now
		return true
	}

	if limit.messageCount >= rl.limit {
		return false
	}

	limit.messageCount++
	return true
}

// Cleanup removes entries idle for five windows and returns how many were removed
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for userID, limit := range rl.clients {
		if now.Sub(limit.windowStart) > 5*rl.window {
			delete(rl.clients, userID)
			removed++
		}
	}
	return removed
}

func (rl *RateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}
