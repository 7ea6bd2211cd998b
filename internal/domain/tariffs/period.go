package tariffs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/shared/events"
)

var (
	ErrPeriodNotFound   = errors.New("tariffs: period not found")
	ErrPeriodIDRequired = errors.New("tariffs: period id is required")
	ErrPeriodName       = errors.New("tariffs: period name is required")
	ErrPeriodBounds     = errors.New("tariffs: period end must not be before start")
	ErrMinStay          = errors.New("tariffs: minimum stay must be at least 1 night")
	ErrPeriodOverlap    = errors.New("tariffs: period overlaps another period of the same tier")
)

type PeriodID string

// Period is a tariff season. Start and End are both inclusive civil days.
type Period struct {
	ID        PeriodID
	Name      string
	Start     time.Time
	End       time.Time
	Holiday   bool
	MinStay   int
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
	events.EventRecorder
}

type PeriodRepository interface {
	ByID(ctx context.Context, id PeriodID) (*Period, error)
	List(ctx context.Context) ([]*Period, error)
	// Overlapping returns periods sharing at least one day with [from, to], both inclusive.
	Overlapping(ctx context.Context, from, to time.Time) ([]*Period, error)
	Save(ctx context.Context, period *Period) error
}

type PeriodParams struct {
	ID      PeriodID
	Name    string
	Start   time.Time
	End     time.Time
	Holiday bool
	MinStay int
	Now     time.Time
}

func (p PeriodParams) normalize() (PeriodParams, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return p, ErrPeriodName
	}
	p.Start = daterange.Day(p.Start)
	p.End = daterange.Day(p.End)
	if p.Start.IsZero() || p.End.IsZero() || p.End.Before(p.Start) {
		return p, ErrPeriodBounds
	}
	minStay, err := normalizeMinStay(p.MinStay)
	if err != nil {
		return p, err
	}
	p.MinStay = minStay
	if p.Now.IsZero() {
		p.Now = time.Now().UTC()
	}
	return p, nil
}

func NewPeriod(params PeriodParams) (*Period, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrPeriodIDRequired
	}
	params, err := params.normalize()
	if err != nil {
		return nil, err
	}
	p := &Period{
		ID:        params.ID,
		Name:      params.Name,
		Start:     params.Start,
		End:       params.End,
		Holiday:   params.Holiday,
		MinStay:   params.MinStay,
		CreatedAt: params.Now,
		UpdatedAt: params.Now,
	}
	p.Record(PeriodUpsertedEvent{PeriodID: p.ID, Start: p.Start, End: p.End, Holiday: p.Holiday, At: params.Now})
	return p, nil
}

func (p *Period) Update(params PeriodParams) error {
	params, err := params.normalize()
	if err != nil {
		return err
	}
	p.Name = params.Name
	p.Start = params.Start
	p.End = params.End
	p.Holiday = params.Holiday
	p.MinStay = params.MinStay
	p.UpdatedAt = params.Now
	p.Record(PeriodUpsertedEvent{PeriodID: p.ID, Start: p.Start, End: p.End, Holiday: p.Holiday, At: params.Now})
	return nil
}

// Contains reports Start <= day <= End.
func (p *Period) Contains(day time.Time) bool {
	day = daterange.Day(day)
	return !day.Before(p.Start) && !day.After(p.End)
}

// Overlaps reports whether the period shares a day with [from, to].
func (p *Period) Overlaps(from, to time.Time) bool {
	return !daterange.Day(from).After(p.End) && !daterange.Day(to).Before(p.Start)
}

func (p *Period) SameTier(other *Period) bool {
	return other != nil && p.Holiday == other.Holiday
}

func (p *Period) Clone() *Period {
	if p == nil {
		return nil
	}
	return &Period{
		ID:        p.ID,
		Name:      p.Name,
		Start:     p.Start,
		End:       p.End,
		Holiday:   p.Holiday,
		MinStay:   p.MinStay,
		Version:   p.Version,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// CheckOverlap rejects a candidate sharing a day with another period of the same tier.
func CheckOverlap(candidate *Period, existing []*Period) error {
	for _, other := range existing {
		if other == nil || other.ID == candidate.ID || !candidate.SameTier(other) {
			continue
		}
		if candidate.Overlaps(other.Start, other.End) {
			return fmt.Errorf("%w: %s", ErrPeriodOverlap, other.ID)
		}
	}
	return nil
}

// SortPeriods orders periods by catalog order: creation time, then id.
func SortPeriods(periods []*Period) {
	sort.SliceStable(periods, func(i, j int) bool {
		if !periods[i].CreatedAt.Equal(periods[j].CreatedAt) {
			return periods[i].CreatedAt.Before(periods[j].CreatedAt)
		}
		return periods[i].ID < periods[j].ID
	})
}

func normalizeMinStay(v int) (int, error) {
	switch {
	case v < 0:
		return 0, ErrMinStay
	case v == 0:
		return 1, nil
	default:
		return v, nil
	}
}
