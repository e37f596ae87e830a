// Package orchestrator fans photo analysis out across every submitted photo
// and folds the settled results into one outcome.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"classlog/internal/verification/metrics"
	"classlog/internal/verification/models"
)

// Analyzer analyzes a single photo.
type Analyzer interface {
	Analyze(ctx context.Context, photoURL, contextLabel string) (models.PhotoAnalysisResult, error)
}

// Outcome is the settled result of one run. Analyzed and Failures keep the
// input order of the photo URLs.
type Outcome struct {
	Primary  models.AnalyzedPhoto
	Analyzed []models.AnalyzedPhoto
	Failures []models.PhotoFailure
}

// Orchestrator runs analyses concurrently and waits for all of them.
type Orchestrator struct {
	analyzer Analyzer
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// New builds an orchestrator. A nil analyzer means the analysis service is
// not configured; every Run then fails with analysis_unavailable.
func New(analyzer Analyzer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		analyzer: analyzer,
		tracer:   otel.Tracer("classlog/verification/orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Available reports whether an analyzer is configured.
func (o *Orchestrator) Available() bool {
	return o.analyzer != nil
}

type settled struct {
	result models.PhotoAnalysisResult
	err    error
}

// Run analyzes every photo in parallel. One failure never cancels its
// siblings. It fails when there are no photos, no analyzer, every photo
// failed, or ctx ended before all calls settled.
func (o *Orchestrator) Run(ctx context.Context, photoURLs []string, contextLabel string) (*Outcome, error) {
	if len(photoURLs) == 0 {
		return nil, &models.PreconditionError{Reason: models.ReasonNoPhotos}
	}
	if o.analyzer == nil {
		return nil, &models.PreconditionError{Reason: models.ReasonAnalysisUnavailable}
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.Run", trace.WithAttributes(
		attribute.Int("photos.submitted", len(photoURLs)),
	))
	defer span.End()

	results := make([]settled, len(photoURLs))
	var g errgroup.Group
	for i, url := range photoURLs {
		g.Go(func() error {
			res, err := o.analyzer.Analyze(ctx, url, contextLabel)
			results[i] = settled{result: res, err: err}
			return nil
		})
	}
	_ = g.Wait()

	out := fold(photoURLs, results)
	o.metrics.AddPhotos(len(out.Analyzed), len(out.Failures))
	span.SetAttributes(
		attribute.Int("photos.analyzed", len(out.Analyzed)),
		attribute.Int("photos.failed", len(out.Failures)),
	)

	if err := ctx.Err(); err != nil {
		o.logger.WarnContext(ctx, "verification run abandoned before completion",
			"analyzed", len(out.Analyzed),
			"failed", len(out.Failures),
			"error", err,
		)
		span.SetStatus(codes.Error, "canceled")
		return nil, fmt.Errorf("analysis run abandoned: %w", err)
	}

	if len(out.Analyzed) == 0 {
		err := &models.AllAnalysesFailedError{Failures: out.Failures}
		span.RecordError(err)
		span.SetStatus(codes.Error, "all analyses failed")
		return nil, err
	}

	for _, f := range out.Failures {
		o.logger.WarnContext(ctx, "photo excluded from verification",
			"photo_url", f.PhotoURL,
			"error", f.Err,
		)
	}
	return out, nil
}

// fold partitions settled results and selects the primary photo: the
// strictly highest kids count, earliest input index on ties.
func fold(photoURLs []string, results []settled) *Outcome {
	out := &Outcome{}
	primary := -1
	for i, r := range results {
		if r.err != nil {
			out.Failures = append(out.Failures, models.PhotoFailure{PhotoURL: photoURLs[i], Err: r.err})
			continue
		}
		out.Analyzed = append(out.Analyzed, models.AnalyzedPhoto{PhotoURL: photoURLs[i], Result: r.result})
		if primary < 0 || r.result.KidsCount > out.Analyzed[primary].Result.KidsCount {
			primary = len(out.Analyzed) - 1
		}
	}
	if primary >= 0 {
		out.Primary = out.Analyzed[primary]
	}
	return out
}
