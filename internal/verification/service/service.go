// Package service runs the class-log verification pipeline: admission,
// parallel photo analysis, geofence and temporal checks, consensus and
// persistence of the verdict.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"classlog/internal/geofence"
	rlmodels "classlog/internal/ratelimit/models"
	"classlog/internal/verification/consensus"
	"classlog/internal/verification/metrics"
	"classlog/internal/verification/models"
	"classlog/internal/verification/orchestrator"
	"classlog/internal/verification/temporal"
	"classlog/pkg/domain"
	dErrors "classlog/pkg/domain-errors"
	"classlog/pkg/platform/audit"
	"classlog/pkg/platform/sentinel"
	"classlog/pkg/requestcontext"
)

// Throttle admits or denies a caller for an operation class.
type Throttle interface {
	Check(ctx context.Context, identifier string, class rlmodels.OperationClass) (*rlmodels.RateLimitResult, error)
}

// Recorder persists verdicts and reads the stored context of a class log.
type Recorder interface {
	PersistVerdict(ctx context.Context, classLogID domain.ClassLogID, verdict models.Verdict) error
	LoadReference(ctx context.Context, classLogID domain.ClassLogID) (*models.Reference, error)
	FindVerdict(ctx context.Context, classLogID domain.ClassLogID) (*models.Verdict, error)
}

// Runner analyzes every submitted photo and folds the results.
type Runner interface {
	Available() bool
	Run(ctx context.Context, photoURLs []string, contextLabel string) (*orchestrator.Outcome, error)
}

// Result is what one admitted verification produced. Verdict is nil when the
// pipeline failed before consensus.
type Result struct {
	Verdict   *models.Verdict
	RateLimit *rlmodels.RateLimitResult
}

type Service struct {
	runner    Runner
	throttle  Throttle
	recorder  Recorder
	publisher audit.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(runner Runner, throttle Throttle, recorder Recorder, opts ...Option) (*Service, error) {
	if runner == nil {
		return nil, errors.New("analysis runner is required")
	}
	if throttle == nil {
		return nil, errors.New("throttle is required")
	}
	if recorder == nil {
		return nil, errors.New("verification recorder is required")
	}
	svc := &Service{
		runner:   runner,
		throttle: throttle,
		recorder: recorder,
		tracer:   otel.Tracer("classlog/verification/service"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.New(slog.DiscardHandler)
	}
	return svc, nil
}

// Verify runs the whole pipeline for one class log. When the verdict was
// computed but could not be written, the returned Result still carries it
// next to a *models.PersistenceError.
func (s *Service) Verify(ctx context.Context, req models.VerificationRequest) (*Result, error) {
	start := time.Now()
	defer func() { s.metrics.ObservePipeline(time.Since(start)) }()

	ctx, span := s.tracer.Start(ctx, "verification.Verify", trace.WithAttributes(
		attribute.String("class_log.id", req.ClassLogID.String()),
		attribute.Int("photos.submitted", len(req.PhotoURLs)),
	))
	defer span.End()

	if err := s.checkPreconditions(ctx, req); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	limit, err := s.admit(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	result := &Result{RateLimit: limit}

	reference, err := s.reference(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	outcome, err := s.runner.Run(ctx, req.PhotoURLs, req.ContextLabel())
	if err != nil {
		s.recordRunFailure(ctx, req, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis failed")
		return result, err
	}

	gps, hasGPS := geofence.Evaluate(req.PhotoGPS, reference)
	in := consensus.Input{
		Primary:       outcome.Primary,
		Date:          temporal.Reconcile(req.ExifDateTaken, req.DeclaredDate, req.DeclaredTime),
		AnalyzedURLs:  analyzedURLs(outcome.Analyzed),
		AnalyzedCount: len(outcome.Analyzed),
		FailedCount:   len(outcome.Failures),
		AnalyzedAt:    requestcontext.Now(ctx).UTC(),
	}
	if hasGPS {
		in.GPS = &gps
	}
	verdict := consensus.Aggregate(in)
	result.Verdict = &verdict
	span.SetAttributes(
		attribute.String("verdict.final_match", verdict.FinalMatch.String()),
		attribute.String("verdict.date_match", verdict.DateMatch.String()),
	)

	if err := s.persist(ctx, req.ClassLogID, verdict); err != nil {
		s.metrics.IncrementFailure("persistence")
		audit.LogAudit(ctx, s.logger, s.publisher, audit.CategoryVerification, audit.ActionPersistenceFailed,
			"class_log_id", req.ClassLogID.String(),
			"subject", req.RateLimitKey,
			"decision", verdict.FinalMatch.String(),
			"reason", err.Error(),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return result, err
	}

	s.metrics.IncrementVerdict(verdict.FinalMatch.String(), verdict.DateMatch.String(), hasGPS)
	audit.LogAudit(ctx, s.logger, s.publisher, audit.CategoryVerification, audit.ActionVerificationCompleted,
		"class_log_id", req.ClassLogID.String(),
		"subject", req.RateLimitKey,
		"decision", verdict.FinalMatch.String(),
		"date_match", verdict.DateMatch.String(),
		"vision_match", verdict.VisionMatch.String(),
		"gps", hasGPS,
		"analyzed_photos", verdict.AnalyzedPhotoCount,
		"failed_photos", verdict.FailedPhotoCount,
	)
	return result, nil
}

// Verdict returns the last stored verdict for a class log.
func (s *Service) Verdict(ctx context.Context, classLogID domain.ClassLogID) (*models.Verdict, error) {
	v, err := s.recorder.FindVerdict(ctx, classLogID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "class log has no verification")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification")
	}
	return v, nil
}

// checkPreconditions rejects runs that could never produce a verdict before
// they spend the caller's budget.
func (s *Service) checkPreconditions(ctx context.Context, req models.VerificationRequest) error {
	if len(req.PhotoURLs) == 0 {
		s.metrics.IncrementFailure(string(models.ReasonNoPhotos))
		return &models.PreconditionError{Reason: models.ReasonNoPhotos}
	}
	if !s.runner.Available() {
		s.metrics.IncrementFailure(string(models.ReasonAnalysisUnavailable))
		audit.LogAudit(ctx, s.logger, s.publisher, audit.CategoryVerification, audit.ActionAnalysisUnavailable,
			"class_log_id", req.ClassLogID.String(),
			"subject", req.RateLimitKey,
		)
		return &models.PreconditionError{Reason: models.ReasonAnalysisUnavailable}
	}
	return nil
}

func (s *Service) admit(ctx context.Context, req models.VerificationRequest) (*rlmodels.RateLimitResult, error) {
	class := rlmodels.OperationClass(req.OperationClass)
	if class == "" {
		class = rlmodels.ClassVerify
	}
	res, err := s.throttle.Check(ctx, req.RateLimitKey, class)
	if err != nil {
		return nil, err
	}
	if !res.Allowed {
		s.metrics.IncrementFailure("rate_limited")
		return res, &models.RateLimitedError{
			Limit:     res.Limit,
			Remaining: res.Remaining,
			ResetAt:   res.ResetAt,
		}
	}
	return res, nil
}

// reference prefers the caller-supplied location and otherwise reads the
// orphanage coordinates stored for the class log. An unknown class log is
// treated as having no reference.
func (s *Service) reference(ctx context.Context, req models.VerificationRequest) (*models.GeoPoint, error) {
	if req.ReferenceLocation != nil {
		return req.ReferenceLocation, nil
	}
	ref, err := s.recorder.LoadReference(ctx, req.ClassLogID)
	if errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "no stored reference for class log",
			"class_log_id", req.ClassLogID.String(),
		)
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load class log reference")
	}
	return ref.Location, nil
}

func (s *Service) recordRunFailure(ctx context.Context, req models.VerificationRequest, err error) {
	var allFailed *models.AllAnalysesFailedError
	var precondition *models.PreconditionError
	switch {
	case errors.As(err, &allFailed):
		s.metrics.IncrementFailure("all_analyses_failed")
		audit.LogAudit(ctx, s.logger, s.publisher, audit.CategoryVerification, audit.ActionAllAnalysesFailed,
			"class_log_id", req.ClassLogID.String(),
			"subject", req.RateLimitKey,
			"failed_photos", len(allFailed.Failures),
		)
	case errors.As(err, &precondition):
		s.metrics.IncrementFailure(string(precondition.Reason))
	default:
		s.metrics.IncrementFailure("canceled")
		s.logger.WarnContext(ctx, "verification abandoned",
			"class_log_id", req.ClassLogID.String(),
			"error", err,
		)
	}
}

func (s *Service) persist(ctx context.Context, classLogID domain.ClassLogID, verdict models.Verdict) error {
	ctx, span := s.tracer.Start(ctx, "verification.PersistVerdict")
	defer span.End()

	err := s.recorder.PersistVerdict(ctx, classLogID, verdict)
	if err == nil {
		return nil
	}
	span.RecordError(err)
	if errors.Is(err, sentinel.ErrNotFound) {
		return &models.PersistenceError{Err: dErrors.Wrap(err, dErrors.CodeNotFound, "class log not found")}
	}
	return &models.PersistenceError{Err: fmt.Errorf("class log %s: %w", classLogID, err)}
}

func analyzedURLs(photos []models.AnalyzedPhoto) []string {
	urls := make([]string, 0, len(photos))
	for _, p := range photos {
		urls = append(urls, p.PhotoURL)
	}
	return urls
}
