package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	appoutbox "innkeep/internal/app/outbox"
)

// Queue is the claim/ack side of the outbox the Worker drains.
type Queue interface {
	Claim(ctx context.Context, workerID string) (*EventDocument, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
	MarkDead(ctx context.Context, id string, errMsg string) error
}

// Worker relays stored events to the broker as CloudEvents on the catalog topic.
type Worker struct {
	Store       Queue
	Producer    appoutbox.Publisher
	Interval    time.Duration
	BatchSize   int
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
	// MaxAttempts parks an event as dead after that many failed publishes;
	// zero retries forever.
	MaxAttempts int
	Logger      *slog.Logger

	now func() time.Time
}

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Drain(ctx); err != nil && ctx.Err() == nil {
				w.logger().ErrorContext(ctx, "outbox drain failed", "worker", w.ID, "error", err)
			}
		}
	}
}

// Drain relays up to BatchSize events and reports how many were sent.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	sent := 0
	for i := 0; i < w.batchSize(); i++ {
		ok, more, err := w.processOnce(ctx)
		if err != nil {
			return sent, err
		}
		if ok {
			sent++
		}
		if !more {
			break
		}
	}
	return sent, nil
}

func (w *Worker) processOnce(ctx context.Context) (sent bool, more bool, err error) {
	doc, err := w.Store.Claim(ctx, w.ID)
	if err != nil || doc == nil {
		return false, false, err
	}
	payload, headers, err := appoutbox.CloudEvent(doc.Record(), w.Source)
	if err != nil {
		w.fail(ctx, doc, err)
		return false, true, nil
	}
	if err := w.Producer.Publish(ctx, appoutbox.Topic(w.TopicPrefix), doc.Aggregate, payload, headers); err != nil {
		w.fail(ctx, doc, err)
		return false, true, nil
	}
	return true, true, w.Store.MarkSent(ctx, doc.ID)
}

func (w *Worker) fail(ctx context.Context, doc *EventDocument, cause error) {
	attempts := doc.Attempts + 1
	if w.MaxAttempts > 0 && attempts >= w.MaxAttempts {
		w.logger().ErrorContext(ctx, "outbox event dead-lettered", "event_id", doc.ID, "name", doc.Name, "attempts", attempts, "error", cause)
		if err := w.Store.MarkDead(ctx, doc.ID, cause.Error()); err != nil {
			w.logger().ErrorContext(ctx, "outbox mark dead failed", "event_id", doc.ID, "error", err)
		}
		return
	}
	w.logger().WarnContext(ctx, "outbox publish failed", "event_id", doc.ID, "name", doc.Name, "attempts", attempts, "error", cause)
	if err := w.Store.MarkFailed(ctx, doc.ID, w.nextRetry(doc.Attempts), cause.Error()); err != nil {
		w.logger().ErrorContext(ctx, "outbox mark failed", "event_id", doc.ID, "error", err)
	}
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) batchSize() int {
	if w.BatchSize <= 0 {
		return 50
	}
	return w.BatchSize
}

func (w *Worker) nextRetry(attempts int) time.Time {
	now := time.Now()
	if w.now != nil {
		now = w.now()
	}
	if attempts < len(w.Backoff) {
		return now.Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return now.Add(w.Backoff[len(w.Backoff)-1])
	}
	return now.Add(5 * time.Second)
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}
