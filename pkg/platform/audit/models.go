package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryVerification covers verdicts written onto class-log records.
	CategoryVerification EventCategory = "verification"
	// CategorySecurity covers throttling and abuse signals.
	CategorySecurity EventCategory = "security"
)

// Action names an audited occurrence.
type Action string

const (
	ActionVerificationCompleted Action = "verification_completed"
	ActionAnalysisUnavailable   Action = "analysis_unavailable"
	ActionAllAnalysesFailed     Action = "all_analyses_failed"
	ActionPersistenceFailed     Action = "verification_persist_failed"
	ActionRateLimitExceeded     Action = "rate_limit_exceeded"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	Category   EventCategory     `json:"category"`
	Action     Action            `json:"action"`
	Timestamp  time.Time         `json:"timestamp"`
	ClassLogID string            `json:"class_log_id,omitempty"`
	Subject    string            `json:"subject,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	Decision   string            `json:"decision,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Publisher delivers audit events to a sink.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}
