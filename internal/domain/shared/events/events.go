package events

import "time"

// DomainEvent is a fact an aggregate hands to the outbox when its unit of
// work commits.
type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

// StateEvent marks events that carry the full state of their aggregate. A
// newer one makes an older pending one of the same name redundant.
type StateEvent interface {
	DomainEvent
	CarriesState()
}

// EventRecorder is embedded by aggregates. It keeps pending events in
// recording order and folds repeated state events for one aggregate into
// the latest.
type EventRecorder struct {
	pending []DomainEvent
}

func (r *EventRecorder) Record(event DomainEvent) {
	if event == nil {
		return
	}
	if _, ok := event.(StateEvent); ok {
		for i, prev := range r.pending {
			if prev.EventName() == event.EventName() && prev.AggregateID() == event.AggregateID() {
				r.pending = append(r.pending[:i], r.pending[i+1:]...)
				break
			}
		}
	}
	r.pending = append(r.pending, event)
}

func (r *EventRecorder) PendingEvents() []DomainEvent {
	return append([]DomainEvent(nil), r.pending...)
}

func (r *EventRecorder) ClearEvents() {
	r.pending = r.pending[:0:0]
}
