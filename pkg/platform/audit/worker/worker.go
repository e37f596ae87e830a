// Package worker decouples audit emission from request handling.
package worker

import (
	"context"
	"log/slog"
	"sync"

	audit "classlog/pkg/platform/audit"
)

const defaultBuffer = 256

// Worker buffers audit events on a channel and forwards them to a sink.
// Emit never blocks the caller; a full buffer drops the event.
type Worker struct {
	sink    audit.Publisher
	inbox   chan audit.Event
	logger  *slog.Logger
	mu      sync.Mutex
	dropped int
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the logger used to report sink failures and drops.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithBuffer sets the inbox capacity.
func WithBuffer(size int) Option {
	return func(w *Worker) {
		if size > 0 {
			w.inbox = make(chan audit.Event, size)
		}
	}
}

func NewWorker(sink audit.Publisher, opts ...Option) *Worker {
	w := &Worker{sink: sink, inbox: make(chan audit.Event, defaultBuffer)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Emit enqueues the event for asynchronous delivery.
func (w *Worker) Emit(ctx context.Context, event audit.Event) error {
	select {
	case w.inbox <- event:
	default:
		w.mu.Lock()
		w.dropped++
		w.mu.Unlock()
		if w.logger != nil {
			w.logger.WarnContext(ctx, "audit buffer full, event dropped",
				"action", event.Action,
				"class_log_id", event.ClassLogID,
			)
		}
	}
	return nil
}

// Dropped reports how many events were discarded because the buffer was full.
func (w *Worker) Dropped() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

// Run forwards events until ctx is cancelled, then drains what is buffered.
// Sink errors are logged and do not stop the loop.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case event := <-w.inbox:
			w.deliver(ctx, event)
		}
	}
}

func (w *Worker) drain() {
	for {
		select {
		case event := <-w.inbox:
			w.deliver(context.Background(), event)
		default:
			return
		}
	}
}

func (w *Worker) deliver(ctx context.Context, event audit.Event) {
	if err := w.sink.Emit(ctx, event); err != nil && w.logger != nil {
		w.logger.ErrorContext(ctx, "failed to publish audit event",
			"error", err,
			"action", event.Action,
			"class_log_id", event.ClassLogID,
		)
	}
}
