package accommodations

import "time"

type UpsertedEvent struct {
	AccommodationID AccommodationID
	Category        Category
	Capacity        int
	At              time.Time
}

func (e UpsertedEvent) EventName() string     { return "accommodation.upserted" }
func (e UpsertedEvent) AggregateID() string   { return string(e.AccommodationID) }
func (e UpsertedEvent) OccurredAt() time.Time { return e.At }
func (e UpsertedEvent) CarriesState()         {}

type BlockedEvent struct {
	AccommodationID AccommodationID
	Reason          string
	At              time.Time
}

func (e BlockedEvent) EventName() string     { return "accommodation.blocked" }
func (e BlockedEvent) AggregateID() string   { return string(e.AccommodationID) }
func (e BlockedEvent) OccurredAt() time.Time { return e.At }

type UnblockedEvent struct {
	AccommodationID AccommodationID
	At              time.Time
}

func (e UnblockedEvent) EventName() string     { return "accommodation.unblocked" }
func (e UnblockedEvent) AggregateID() string   { return string(e.AccommodationID) }
func (e UnblockedEvent) OccurredAt() time.Time { return e.At }
