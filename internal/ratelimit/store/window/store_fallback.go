package window

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"classlog/internal/ratelimit/models"
	"classlog/pkg/platform/circuit"
	"classlog/pkg/platform/sentinel"
)

// Primary is the shared window store guarded by the breaker.
type Primary interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
	Reset(ctx context.Context, key string) error
}

// FallbackStore admits through a shared primary store and switches to a
// process-local store while the primary keeps failing. Every call still
// retries the primary so the circuit can close once it recovers.
type FallbackStore struct {
	primary  Primary
	fallback *InMemoryStore
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

// NewFallbackStore wraps primary. A nil logger discards state changes.
func NewFallbackStore(primary Primary, fallback *InMemoryStore, breaker *circuit.Breaker, logger *slog.Logger) *FallbackStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FallbackStore{primary: primary, fallback: fallback, breaker: breaker, logger: logger}
}

func (s *FallbackStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	res, err := s.primary.Allow(ctx, key, limit, window)
	if err != nil {
		useFallback, change := s.breaker.RecordFailure()
		if change.Opened {
			s.logger.WarnContext(ctx, "throttle store circuit opened, using in-memory windows",
				"breaker", s.breaker.Name(),
				"error", err,
			)
		}
		if !useFallback {
			return nil, fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
		}
		return s.fallback.Allow(ctx, key, limit, window)
	}

	usePrimary, change := s.breaker.RecordSuccess()
	if change.Closed {
		s.logger.InfoContext(ctx, "throttle store circuit closed", "breaker", s.breaker.Name())
	}
	if !usePrimary {
		return s.fallback.Allow(ctx, key, limit, window)
	}
	return res, nil
}

// Reset clears key in both stores.
func (s *FallbackStore) Reset(ctx context.Context, key string) error {
	_ = s.fallback.Reset(ctx, key)
	return s.primary.Reset(ctx, key)
}

// Degraded reports whether admissions are currently served from memory.
func (s *FallbackStore) Degraded() bool {
	return s.breaker.IsOpen()
}
