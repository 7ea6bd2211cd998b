package accommodations

import (
	"context"
	"errors"
	"strings"
	"time"

	"innkeep/internal/domain/shared/events"
)

var (
	ErrNotFound          = errors.New("accommodations: not found")
	ErrIDRequired        = errors.New("accommodations: id is required")
	ErrNameRequired      = errors.New("accommodations: name is required")
	ErrCapacity          = errors.New("accommodations: capacity must be at least 1")
	ErrCategoryImmutable = errors.New("accommodations: category cannot change once created")
)

type AccommodationID string

// Block marks a unit as unavailable. From/Until are informational only: a
// blocked unit stays out of search until it is explicitly unblocked.
type Block struct {
	Blocked bool
	Reason  string
	Note    string
	From    *time.Time
	Until   *time.Time
}

type Accommodation struct {
	ID        AccommodationID
	Name      string
	Category  Category
	Capacity  int
	Block     Block
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
	events.EventRecorder
}

// Filter narrows repository listings to searchable candidates.
type Filter struct {
	MinCapacity    int
	ExcludeBlocked bool
}

func (f Filter) Matches(a *Accommodation) bool {
	if a == nil {
		return false
	}
	if f.MinCapacity > 0 && a.Capacity < f.MinCapacity {
		return false
	}
	if f.ExcludeBlocked && a.Block.Blocked {
		return false
	}
	return true
}

type Repository interface {
	ByID(ctx context.Context, id AccommodationID) (*Accommodation, error)
	List(ctx context.Context, filter Filter) ([]*Accommodation, error)
	Save(ctx context.Context, acc *Accommodation) error
}

type CreateParams struct {
	ID       AccommodationID
	Name     string
	Category Category
	Capacity int
	Now      time.Time
}

func New(params CreateParams) (*Accommodation, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	if strings.TrimSpace(params.Name) == "" {
		return nil, ErrNameRequired
	}
	if !params.Category.Valid() {
		return nil, ErrUnknownCategory
	}
	if params.Capacity < 1 {
		return nil, ErrCapacity
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	acc := &Accommodation{
		ID:        params.ID,
		Name:      strings.TrimSpace(params.Name),
		Category:  params.Category,
		Capacity:  params.Capacity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	acc.Record(UpsertedEvent{AccommodationID: acc.ID, Category: acc.Category, Capacity: acc.Capacity, At: now})
	return acc, nil
}

// Update changes the mutable attributes. The category is fixed at creation.
func (a *Accommodation) Update(name string, category Category, capacity int, now time.Time) error {
	if strings.TrimSpace(name) == "" {
		return ErrNameRequired
	}
	if category != "" && category != a.Category {
		return ErrCategoryImmutable
	}
	if capacity < 1 {
		return ErrCapacity
	}
	a.Name = strings.TrimSpace(name)
	a.Capacity = capacity
	a.UpdatedAt = now
	a.Record(UpsertedEvent{AccommodationID: a.ID, Category: a.Category, Capacity: a.Capacity, At: now})
	return nil
}

func (a *Accommodation) BlockFor(reason, note string, from, until *time.Time, now time.Time) {
	a.Block = Block{
		Blocked: true,
		Reason:  strings.TrimSpace(reason),
		Note:    strings.TrimSpace(note),
		From:    from,
		Until:   until,
	}
	a.UpdatedAt = now
	a.Record(BlockedEvent{AccommodationID: a.ID, Reason: a.Block.Reason, At: now})
}

func (a *Accommodation) Unblock(now time.Time) {
	if !a.Block.Blocked {
		return
	}
	a.Block = Block{}
	a.UpdatedAt = now
	a.Record(UnblockedEvent{AccommodationID: a.ID, At: now})
}

// Available reports whether the unit may appear in search results, ignoring maintenance.
func (a *Accommodation) Available() bool {
	return !a.Block.Blocked
}

// Clone returns a detached copy without pending events.
func (a *Accommodation) Clone() *Accommodation {
	if a == nil {
		return nil
	}
	out := &Accommodation{
		ID:        a.ID,
		Name:      a.Name,
		Category:  a.Category,
		Capacity:  a.Capacity,
		Block:     a.Block,
		Version:   a.Version,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	if a.Block.From != nil {
		from := *a.Block.From
		out.Block.From = &from
	}
	if a.Block.Until != nil {
		until := *a.Block.Until
		out.Block.Until = &until
	}
	return out
}
