package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	rlmodels "classlog/internal/ratelimit/models"
	dErrors "classlog/pkg/domain-errors"
)

// PreconditionReason names why the pipeline refused to start.
type PreconditionReason string

const (
	ReasonNoPhotos            PreconditionReason = "no_photos"
	ReasonAnalysisUnavailable PreconditionReason = "analysis_unavailable"
)

// PreconditionError is returned before any work is attempted.
type PreconditionError struct {
	Reason PreconditionReason
}

func (e *PreconditionError) Error() string {
	switch e.Reason {
	case ReasonNoPhotos:
		return "at least one photo is required"
	case ReasonAnalysisUnavailable:
		return "photo analysis is unavailable"
	default:
		return "precondition failed: " + string(e.Reason)
	}
}

// DomainCode maps a missing-photo precondition to a validation failure and an
// unconfigured analysis service to a precondition failure.
func (e *PreconditionError) DomainCode() dErrors.Code {
	if e.Reason == ReasonNoPhotos {
		return dErrors.CodeValidation
	}
	return dErrors.CodePrecondition
}

// RateLimitedError is returned when the caller's window is exhausted.
type RateLimitedError struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.ResetAt.UTC().Format(time.RFC3339))
}

func (e *RateLimitedError) DomainCode() dErrors.Code { return dErrors.CodeTooManyRequests }

// RetryAfter is the wait until the window resets, in whole seconds.
func (e *RateLimitedError) RetryAfter(now time.Time) int {
	return rlmodels.RetryAfterSeconds(now, e.ResetAt)
}

// PhotoFailure records why one photo could not be analyzed.
type PhotoFailure struct {
	PhotoURL string
	Err      error
}

// AllAnalysesFailedError is returned when no photo could be analyzed.
// Failures are kept in input order.
type AllAnalysesFailedError struct {
	Failures []PhotoFailure
}

func (e *AllAnalysesFailedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.PhotoURL, f.Err))
	}
	return fmt.Sprintf("all %d photo analyses failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

func (e *AllAnalysesFailedError) DomainCode() dErrors.Code { return dErrors.CodeBadGateway }

// Unwrap exposes the per-photo causes to errors.Is/As.
func (e *AllAnalysesFailedError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.Err)
	}
	return out
}

// PersistenceError wraps a failed verdict write. The computed verdict is
// returned alongside it.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string { return "failed to persist verdict: " + e.Err.Error() }

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) DomainCode() dErrors.Code {
	var de *dErrors.Error
	if errors.As(e.Err, &de) && de.Code == dErrors.CodeNotFound {
		return dErrors.CodeNotFound
	}
	return dErrors.CodeInternal
}
