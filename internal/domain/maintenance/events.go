package maintenance

import (
	"time"

	"innkeep/internal/domain/accommodations"
)

type HoldOpenedEvent struct {
	HoldID          HoldID
	AccommodationID accommodations.AccommodationID
	Reason          string
	At              time.Time
}

func (e HoldOpenedEvent) EventName() string     { return "maintenance_hold.opened" }
func (e HoldOpenedEvent) AggregateID() string   { return string(e.AccommodationID) }
func (e HoldOpenedEvent) OccurredAt() time.Time { return e.At }

type HoldClosedEvent struct {
	HoldID          HoldID
	AccommodationID accommodations.AccommodationID
	At              time.Time
}

func (e HoldClosedEvent) EventName() string     { return "maintenance_hold.closed" }
func (e HoldClosedEvent) AggregateID() string   { return string(e.AccommodationID) }
func (e HoldClosedEvent) OccurredAt() time.Time { return e.At }
