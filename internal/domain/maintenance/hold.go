package maintenance

import (
	"context"
	"errors"
	"strings"
	"time"

	"innkeep/internal/domain/accommodations"
	"innkeep/internal/domain/shared/events"
)

var (
	ErrHoldNotFound     = errors.New("maintenance: hold not found")
	ErrHoldClosed       = errors.New("maintenance: hold already closed")
	ErrHoldIDRequired   = errors.New("maintenance: hold id is required")
	ErrAccommodationReq = errors.New("maintenance: accommodation is required")
)

type HoldID string

// Hold takes an accommodation out of search while a maintenance order is open.
type Hold struct {
	ID              HoldID
	AccommodationID accommodations.AccommodationID
	Reason          string
	Reference       string
	OpenedAt        time.Time
	ClosedAt        *time.Time
	events.EventRecorder
}

// HoldProvider is the read side the search consults per candidate.
type HoldProvider interface {
	HasActiveHold(ctx context.Context, id accommodations.AccommodationID) (bool, error)
}

type Repository interface {
	HoldProvider
	ByID(ctx context.Context, id HoldID) (*Hold, error)
	// ByReference finds a hold by the external maintenance order id.
	ByReference(ctx context.Context, reference string) (*Hold, error)
	Active(ctx context.Context) ([]*Hold, error)
	Save(ctx context.Context, hold *Hold) error
}

type OpenParams struct {
	ID              HoldID
	AccommodationID accommodations.AccommodationID
	Reason          string
	Reference       string
	Now             time.Time
}

func OpenHold(params OpenParams) (*Hold, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrHoldIDRequired
	}
	if strings.TrimSpace(string(params.AccommodationID)) == "" {
		return nil, ErrAccommodationReq
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	h := &Hold{
		ID:              params.ID,
		AccommodationID: params.AccommodationID,
		Reason:          strings.TrimSpace(params.Reason),
		Reference:       strings.TrimSpace(params.Reference),
		OpenedAt:        now,
	}
	h.Record(HoldOpenedEvent{HoldID: h.ID, AccommodationID: h.AccommodationID, Reason: h.Reason, At: now})
	return h, nil
}

func (h *Hold) Close(now time.Time) error {
	if h.ClosedAt != nil {
		return ErrHoldClosed
	}
	closed := now.UTC()
	h.ClosedAt = &closed
	h.Record(HoldClosedEvent{HoldID: h.ID, AccommodationID: h.AccommodationID, At: closed})
	return nil
}

func (h *Hold) Active() bool {
	return h.ClosedAt == nil
}

func (h *Hold) Clone() *Hold {
	if h == nil {
		return nil
	}
	out := &Hold{
		ID:              h.ID,
		AccommodationID: h.AccommodationID,
		Reason:          h.Reason,
		Reference:       h.Reference,
		OpenedAt:        h.OpenedAt,
	}
	if h.ClosedAt != nil {
		closed := *h.ClosedAt
		out.ClosedAt = &closed
	}
	return out
}
