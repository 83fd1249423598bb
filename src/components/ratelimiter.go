package components

import (
	"sync"
	"time"
)

// RateLimiter enforces a per-submitter cooldown between accepted submissions.
// A denied attempt does not touch the stored timestamp, so the window is
// always measured from the last accepted submission.
type RateLimiter struct {
	users map[string]time.Time
	mu    sync.Mutex
	limit time.Duration
}

func NewRateLimiter(limit time.Duration) *RateLimiter {
	return &RateLimiter{
		users: make(map[string]time.Time),
		limit: limit,
	}
}

func (rl *RateLimiter) Allow(userID string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	last, exists := rl.users[userID]
	if !exists || now.Sub(last) >= rl.limit {
		rl.users[userID] = now
		return true
	}
	return false
}

func (rl *RateLimiter) TimeUntilNext(userID string, now time.Time) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	last, exists := rl.users[userID]
	if !exists {
		return 0
	}

	elapsed := now.Sub(last)
	if elapsed >= rl.limit {
		return 0
	}
	return rl.limit - elapsed
}
