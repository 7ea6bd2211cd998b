package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"innkeep/internal/domain/shared/events"
)

// CatalogTopic receives every catalog and maintenance-hold event.
const CatalogTopic = "catalog.events.v1"

const DefaultSource = "app://innkeep"

type EventRecord struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
}

type Outbox interface {
	Add(ctx context.Context, record EventRecord) error
	Flush(ctx context.Context) error
}

// Publisher ships encoded events to the broker.
type Publisher interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

type EventEncoder interface {
	Encode(ev events.DomainEvent) (EventRecord, error)
}

type JSONEventEncoder struct {
	IDGenerator func() string
}

func (e JSONEventEncoder) Encode(ev events.DomainEvent) (EventRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, err
	}
	idGen := e.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}
	return EventRecord{
		ID:         idGen(),
		Name:       ev.EventName(),
		Payload:    payload,
		OccurredAt: ev.OccurredAt(),
		Aggregate:  ev.AggregateID(),
		Headers:    map[string]string{},
	}, nil
}

// Recorder is implemented by aggregates embedding events.EventRecorder.
type Recorder interface {
	PendingEvents() []events.DomainEvent
	ClearEvents()
}

// RecordDomainEvents encodes evs into box.
func RecordDomainEvents(ctx context.Context, box Outbox, encoder EventEncoder, evs []events.DomainEvent) error {
	if box == nil || len(evs) == 0 {
		return nil
	}
	if encoder == nil {
		encoder = JSONEventEncoder{}
	}
	for _, ev := range evs {
		rec, err := encoder.Encode(ev)
		if err != nil {
			return err
		}
		if err := box.Add(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Drain records the pending events of every aggregate and clears them.
func Drain(ctx context.Context, box Outbox, encoder EventEncoder, aggregates ...Recorder) error {
	for _, agg := range aggregates {
		if agg == nil {
			continue
		}
		if err := RecordDomainEvents(ctx, box, encoder, agg.PendingEvents()); err != nil {
			return err
		}
		agg.ClearEvents()
	}
	return nil
}

// Topic returns the catalog topic under an optional environment prefix.
func Topic(prefix string) string {
	return prefix + CatalogTopic
}

// CloudEvent wraps a record in a CloudEvents 1.0 JSON envelope.
func CloudEvent(rec EventRecord, source string) ([]byte, map[string]string, error) {
	if source == "" {
		source = DefaultSource
	}
	data := map[string]any{}
	if len(rec.Payload) > 0 {
		if err := json.Unmarshal(rec.Payload, &data); err != nil {
			return nil, nil, err
		}
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              rec.ID,
		"type":            rec.Name + ".v1",
		"source":          source,
		"subject":         rec.Aggregate,
		"time":            rec.OccurredAt.UTC(),
		"datacontenttype": "application/json",
		"data":            data,
	}
	if trace, ok := rec.Headers["traceparent"]; ok {
		evt["traceparent"] = trace
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		"content-type": "application/cloudevents+json",
		"ce-type":      rec.Name + ".v1",
	}
	for k, v := range rec.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}
