// Package window implements fixed-window admission counters.
package window

import (
	"context"
	"sync"
	"time"

	"classlog/internal/ratelimit/models"
)

// InMemoryStore keeps fixed windows in process memory. One mutex guards the
// read-modify-write of every admission, so two concurrent callers can never
// both take the last slot.
type InMemoryStore struct {
	mu      sync.Mutex
	windows map[string]*models.Window
	now     func() time.Time
}

// Option configures an InMemoryStore.
type Option func(*InMemoryStore)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *InMemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore(opts ...Option) *InMemoryStore {
	s := &InMemoryStore{
		windows: make(map[string]*models.Window),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow admits one request for key. The first request, or the first after
// the window ended, opens a new window with count 1. Later requests are
// counted until limit; denials do not consume a slot.
func (s *InMemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if limit <= 0 {
		return denied(limit, now.Add(window), now), nil
	}

	w := s.windows[key]
	if w == nil || w.Expired(now) {
		w = &models.Window{Key: key, Count: 1, ResetAt: now.Add(window)}
		s.windows[key] = w
		return allowed(limit, w), nil
	}
	if w.Count >= limit {
		return denied(limit, w.ResetAt, now), nil
	}
	w.Count++
	return allowed(limit, w), nil
}

// Reset clears the window for a key.
func (s *InMemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

// peek returns a copy of the live window for key, or nil when there is none.
func (s *InMemoryStore) peek(key string) *models.Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.windows[key]
	if w == nil || w.Expired(s.now()) {
		return nil
	}
	cp := *w
	return &cp
}

// Sweep drops windows that ended at or before now and returns how many were
// removed along with how many remain.
func (s *InMemoryStore) Sweep(now time.Time) (removed, remaining int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, w := range s.windows {
		if w.Expired(now) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed, len(s.windows)
}

func allowed(limit int, w *models.Window) *models.RateLimitResult {
	return &models.RateLimitResult{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - w.Count,
		ResetAt:   w.ResetAt,
	}
}

func denied(limit int, resetAt, now time.Time) *models.RateLimitResult {
	return &models.RateLimitResult{
		Allowed:    false,
		Limit:      limit,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: models.RetryAfterSeconds(now, resetAt),
	}
}
