package audit

import (
	"context"
	"log/slog"
	"time"

	"classlog/pkg/attrs"
	"classlog/pkg/requestcontext"
)

// LogAudit logs an audit event to the structured logger and, when a
// publisher is set, forwards it there too. Subject, class log id, decision and reason are lifted out of
// attrList; the rest travel as attributes.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher Publisher, category EventCategory, action Action, attrList ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attrList = append(attrList, "request_id", requestID)
	}

	if logger != nil {
		args := append(attrList, "event", string(action), "log_type", "audit")
		logger.InfoContext(ctx, string(action), args...)
	}

	if publisher == nil {
		return
	}

	event := Event{
		Category:   category,
		Action:     action,
		Timestamp:  requestcontext.Now(ctx).UTC().Truncate(time.Millisecond),
		ClassLogID: attrs.ExtractString(attrList, "class_log_id"),
		Subject:    attrs.ExtractString(attrList, "subject"),
		RequestID:  requestID,
		Decision:   attrs.ExtractString(attrList, "decision"),
		Reason:     attrs.ExtractString(attrList, "reason"),
		Attributes: attrs.ToMap(attrList, "class_log_id", "subject", "request_id", "decision", "reason"),
	}
	if err := publisher.Emit(ctx, event); err != nil && logger != nil {
		logger.ErrorContext(ctx, "failed to emit audit event", "error", err, "event", string(action))
	}
}
