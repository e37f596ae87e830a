package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classlog/pkg/requestcontext"
)

type capturePublisher struct {
	events []Event
	err    error
}

func (c *capturePublisher) Emit(_ context.Context, e Event) error {
	c.events = append(c.events, e)
	return c.err
}

func TestLogAudit(t *testing.T) {
	now := time.Date(2025, 3, 12, 9, 15, 0, 0, time.UTC)
	ctx := requestcontext.WithRequestID(context.Background(), "req-1")
	ctx = requestcontext.WithTime(ctx, now)

	t.Run("logs and publishes", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		pub := &capturePublisher{}

		LogAudit(ctx, logger, pub, CategoryVerification, ActionVerificationCompleted,
			"class_log_id", "cl-1",
			"subject", "teacher-9",
			"decision", "high",
			"photo_count", 2,
		)

		assert.Contains(t, buf.String(), `"log_type":"audit"`)
		assert.Contains(t, buf.String(), `"request_id":"req-1"`)

		require.Len(t, pub.events, 1)
		e := pub.events[0]
		assert.Equal(t, ActionVerificationCompleted, e.Action)
		assert.Equal(t, "cl-1", e.ClassLogID)
		assert.Equal(t, "teacher-9", e.Subject)
		assert.Equal(t, "high", e.Decision)
		assert.Equal(t, "req-1", e.RequestID)
		assert.Equal(t, now, e.Timestamp)
		assert.Equal(t, map[string]string{"photo_count": "2"}, e.Attributes)
	})

	t.Run("publish failure is logged", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		pub := &capturePublisher{err: errors.New("broker down")}

		LogAudit(ctx, logger, pub, CategorySecurity, ActionRateLimitExceeded, "subject", "ip:1.2.3.4")

		assert.Contains(t, buf.String(), "failed to emit audit event")
	})

	t.Run("nil publisher only logs", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		LogAudit(ctx, logger, nil, CategorySecurity, ActionRateLimitExceeded)

		assert.Contains(t, buf.String(), "rate_limit_exceeded")
	})

	t.Run("one log line per event", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		pub := &capturePublisher{}

		LogAudit(ctx, logger, pub, CategoryVerification, ActionVerificationCompleted, "class_log_id", "cl-1")
		LogAudit(ctx, logger, nil, CategoryVerification, ActionVerificationCompleted, "class_log_id", "cl-2")

		assert.Equal(t, 2, strings.Count(buf.String(), `"log_type":"audit"`))
		assert.Len(t, pub.events, 1)
	})
}
