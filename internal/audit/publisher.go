package audit

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"renavam/pkg/requestcontext"
)

// Publisher accepts audit events from domain services without blocking them.
// Events go onto a bounded inbox drained by the Worker; when the inbox is full
// the event is dropped and counted, because no registry operation may fail or
// stall on its audit trail.
type Publisher struct {
	inbox   chan Event
	logger  *slog.Logger
	dropped atomic.Int64
}

func NewPublisher(buffer int, logger *slog.Logger) *Publisher {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Publisher{
		inbox:  make(chan Event, buffer),
		logger: logger,
	}
}

// Emit enqueues the event. Nil-safe so services can run without auditing
// (tests, tooling). The event timestamp defaults to the request-scoped clock.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if p == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}

	select {
	case p.inbox <- event:
	default:
		p.dropped.Add(1)
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit inbox full, dropping event",
				"action", event.Action,
				"user_id", event.UserID,
			)
		}
	}
}

// Inbox exposes the event channel for the worker.
func (p *Publisher) Inbox() <-chan Event {
	return p.inbox
}

// Sink persists audit events. Implementations: MemorySink, KafkaSink.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Worker consumes audit events from the publisher inbox and hands them to the
// sink. Sink failures are logged and skipped; the trail is best-effort.
type Worker struct {
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(sink Sink, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			appendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			if err := w.sink.Append(appendCtx, event); err != nil && w.logger != nil {
				w.logger.Error("audit append failed",
					"action", event.Action,
					"error", err,
				)
			}
			cancel()
		}
	}
}
