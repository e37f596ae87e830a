package vision

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned by New when no API key is available.
var ErrNotConfigured = errors.New("vision service not configured: missing VISION_API_KEY")

// ErrorCategory is the normalized failure taxonomy for one analysis call.
type ErrorCategory string

const (
	// ErrorUnreachable means the request never produced an HTTP response.
	ErrorUnreachable ErrorCategory = "unreachable"
	// ErrorUpstreamStatus means the service answered 429 or 5xx.
	ErrorUpstreamStatus ErrorCategory = "upstream_status"
	// ErrorBadRequest means the service rejected the request (4xx).
	ErrorBadRequest ErrorCategory = "bad_request"
	// ErrorTimeout means the per-call deadline elapsed.
	ErrorTimeout ErrorCategory = "timeout"
	// ErrorCanceled means the caller abandoned the run.
	ErrorCanceled ErrorCategory = "canceled"
)

// AnalysisError wraps a failed analysis call for one photo.
type AnalysisError struct {
	Category   ErrorCategory
	StatusCode int
	Message    string
	Underlying error
}

func (e *AnalysisError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("vision [%s] http %d: %s", e.Category, e.StatusCode, e.Message)
	}
	if e.Underlying != nil {
		return fmt.Sprintf("vision [%s]: %s: %v", e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("vision [%s]: %s", e.Category, e.Message)
}

func (e *AnalysisError) Unwrap() error {
	return e.Underlying
}

func newAnalysisError(category ErrorCategory, status int, message string, underlying error) *AnalysisError {
	return &AnalysisError{
		Category:   category,
		StatusCode: status,
		Message:    message,
		Underlying: underlying,
	}
}

// CategoryOf extracts the failure category, or "" for foreign errors.
func CategoryOf(err error) ErrorCategory {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Category
	}
	return ""
}
