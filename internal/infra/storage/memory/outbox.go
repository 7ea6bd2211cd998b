package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	appoutbox "innkeep/internal/app/outbox"
)

// Outbox keeps events in memory until flushed. With a Publisher configured,
// Flush ships them as CloudEvents; records that fail to publish stay queued.
type Outbox struct {
	mu        sync.Mutex
	records   []appoutbox.EventRecord
	publisher appoutbox.Publisher
	topic     string
	source    string
	logger    *slog.Logger
}

type OutboxOption func(*Outbox)

func WithPublisher(p appoutbox.Publisher, topicPrefix, source string) OutboxOption {
	return func(o *Outbox) {
		o.publisher = p
		o.topic = appoutbox.Topic(topicPrefix)
		o.source = source
	}
}

func WithOutboxLogger(logger *slog.Logger) OutboxOption {
	return func(o *Outbox) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func NewOutbox(opts ...OutboxOption) *Outbox {
	o := &Outbox{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, record)
	return nil
}

func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.publisher == nil {
		o.records = nil
		return nil
	}
	var (
		pending []appoutbox.EventRecord
		errs    []error
	)
	for _, rec := range o.records {
		payload, headers, err := appoutbox.CloudEvent(rec, o.source)
		if err != nil {
			o.logger.ErrorContext(ctx, "outbox event dropped", "event_id", rec.ID, "name", rec.Name, "error", err)
			continue
		}
		if err := o.publisher.Publish(ctx, o.topic, rec.Aggregate, payload, headers); err != nil {
			pending = append(pending, rec)
			errs = append(errs, fmt.Errorf("publish %s: %w", rec.ID, err))
			continue
		}
	}
	o.records = pending
	return errors.Join(errs...)
}

// Pending reports how many records wait for the next flush.
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.records)
}

var _ appoutbox.Outbox = (*Outbox)(nil)
