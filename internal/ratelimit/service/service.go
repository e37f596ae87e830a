// Package service admits or denies verification runs per caller and
// operation class.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"classlog/internal/ratelimit/metrics"
	"classlog/internal/ratelimit/models"
	dErrors "classlog/pkg/domain-errors"
	"classlog/pkg/platform/audit"
	"classlog/pkg/platform/sentinel"
	"classlog/pkg/requestcontext"
)

// Store is a fixed-window counter store.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
	Reset(ctx context.Context, key string) error
}

type Service struct {
	store     Store
	classes   models.Classes
	publisher audit.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

func WithClasses(classes models.Classes) Option {
	return func(s *Service) {
		if classes != nil {
			s.classes = classes
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("window store is required")
	}
	svc := &Service{
		store:   store,
		classes: models.DefaultClasses(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Admit counts one request against key with an explicit budget.
func (s *Service) Admit(ctx context.Context, key string, maxRequests int, window time.Duration) (*models.RateLimitResult, error) {
	if strings.TrimSpace(key) == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "rate limit key is required")
	}
	result, err := s.store.Allow(ctx, key, maxRequests, window)
	if errors.Is(err, sentinel.ErrUnavailable) {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "rate limit store unavailable")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check rate limit")
	}
	return result, nil
}

// Check admits identifier under the budget of class. An unconfigured class
// is denied.
func (s *Service) Check(ctx context.Context, identifier string, class models.OperationClass) (*models.RateLimitResult, error) {
	limit, ok := s.classes.Lookup(class)
	if !ok {
		audit.LogAudit(ctx, s.logger, s.publisher, audit.CategorySecurity, "rate_limit_config_missing",
			"subject", identifier,
			"operation_class", string(class),
		)
		s.metrics.RecordDecision(string(class), false)
		now := requestcontext.Now(ctx)
		return &models.RateLimitResult{
			Allowed:    false,
			ResetAt:    now.Add(time.Minute),
			RetryAfter: 60,
		}, nil
	}

	result, err := s.Admit(ctx, models.NewKey(class, identifier).String(), limit.MaxRequests, limit.Window)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordDecision(string(class), result.Allowed)

	if !result.Allowed {
		audit.LogAudit(ctx, s.logger, s.publisher, audit.CategorySecurity, audit.ActionRateLimitExceeded,
			"subject", identifier,
			"operation_class", string(class),
			"limit", limit.MaxRequests,
			"window_seconds", int(limit.Window.Seconds()),
		)
	}
	return result, nil
}

// Reset clears identifier's window for class.
func (s *Service) Reset(ctx context.Context, identifier string, class models.OperationClass) error {
	if err := s.store.Reset(ctx, models.NewKey(class, identifier).String()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset rate limit")
	}
	return nil
}
