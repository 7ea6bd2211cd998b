package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainacc "innkeep/internal/domain/accommodations"
	domainmaint "innkeep/internal/domain/maintenance"
	domaintariffs "innkeep/internal/domain/tariffs"
)

// AccommodationRepository keeps accommodations in memory. Callers always get
// detached copies, so changes only land through Save.
type AccommodationRepository struct {
	mu    sync.RWMutex
	items map[domainacc.AccommodationID]*domainacc.Accommodation
}

func NewAccommodationRepository() *AccommodationRepository {
	return &AccommodationRepository{items: make(map[domainacc.AccommodationID]*domainacc.Accommodation)}
}

func (r *AccommodationRepository) ByID(ctx context.Context, id domainacc.AccommodationID) (*domainacc.Accommodation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acc, ok := r.items[id]
	if !ok {
		return nil, domainacc.ErrNotFound
	}
	return acc.Clone(), nil
}

func (r *AccommodationRepository) List(ctx context.Context, filter domainacc.Filter) ([]*domainacc.Accommodation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainacc.Accommodation, 0, len(r.items))
	for _, acc := range r.items {
		if filter.Matches(acc) {
			out = append(out, acc.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *AccommodationRepository) Save(ctx context.Context, acc *domainacc.Accommodation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.items[acc.ID]; ok {
		acc.Version = current.Version + 1
	} else {
		acc.Version = 1
	}
	r.items[acc.ID] = acc.Clone()
	return nil
}

type PeriodRepository struct {
	mu    sync.RWMutex
	items map[domaintariffs.PeriodID]*domaintariffs.Period
}

func NewPeriodRepository() *PeriodRepository {
	return &PeriodRepository{items: make(map[domaintariffs.PeriodID]*domaintariffs.Period)}
}

func (r *PeriodRepository) ByID(ctx context.Context, id domaintariffs.PeriodID) (*domaintariffs.Period, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[id]
	if !ok {
		return nil, domaintariffs.ErrPeriodNotFound
	}
	return p.Clone(), nil
}

func (r *PeriodRepository) List(ctx context.Context) ([]*domaintariffs.Period, error) {
	return r.collect(ctx, func(*domaintariffs.Period) bool { return true })
}

func (r *PeriodRepository) Overlapping(ctx context.Context, from, to time.Time) ([]*domaintariffs.Period, error) {
	return r.collect(ctx, func(p *domaintariffs.Period) bool { return p.Overlaps(from, to) })
}

func (r *PeriodRepository) collect(ctx context.Context, keep func(*domaintariffs.Period) bool) ([]*domaintariffs.Period, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domaintariffs.Period, 0, len(r.items))
	for _, p := range r.items {
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	domaintariffs.SortPeriods(out)
	return out, nil
}

func (r *PeriodRepository) Save(ctx context.Context, p *domaintariffs.Period) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.items[p.ID]; ok {
		p.Version = current.Version + 1
		p.CreatedAt = current.CreatedAt
	} else {
		p.Version = 1
	}
	r.items[p.ID] = p.Clone()
	return nil
}

type PriceRuleRepository struct {
	mu    sync.RWMutex
	items map[domaintariffs.PriceRuleID]*domaintariffs.PriceRule
}

func NewPriceRuleRepository() *PriceRuleRepository {
	return &PriceRuleRepository{items: make(map[domaintariffs.PriceRuleID]*domaintariffs.PriceRule)}
}

func (r *PriceRuleRepository) ByID(ctx context.Context, id domaintariffs.PriceRuleID) (*domaintariffs.PriceRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.items[id]
	if !ok {
		return nil, domaintariffs.ErrRuleNotFound
	}
	return rule.Clone(), nil
}

func (r *PriceRuleRepository) List(ctx context.Context, filter domaintariffs.RuleFilter) ([]*domaintariffs.PriceRule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domaintariffs.PriceRule, 0, len(r.items))
	for _, rule := range r.items {
		if filter.Matches(rule) {
			out = append(out, rule.Clone())
		}
	}
	domaintariffs.SortRules(out)
	return out, nil
}

func (r *PriceRuleRepository) Save(ctx context.Context, rule *domaintariffs.PriceRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.items[rule.ID]; ok {
		rule.Version = current.Version + 1
		rule.CreatedAt = current.CreatedAt
	} else {
		rule.Version = 1
	}
	r.items[rule.ID] = rule.Clone()
	return nil
}

type HoldRepository struct {
	mu    sync.RWMutex
	items map[domainmaint.HoldID]*domainmaint.Hold
}

func NewHoldRepository() *HoldRepository {
	return &HoldRepository{items: make(map[domainmaint.HoldID]*domainmaint.Hold)}
}

func (r *HoldRepository) HasActiveHold(ctx context.Context, id domainacc.AccommodationID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.items {
		if h.AccommodationID == id && h.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (r *HoldRepository) ByID(ctx context.Context, id domainmaint.HoldID) (*domainmaint.Hold, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.items[id]
	if !ok {
		return nil, domainmaint.ErrHoldNotFound
	}
	return h.Clone(), nil
}

// ByReference returns the most recently opened hold for reference.
func (r *HoldRepository) ByReference(ctx context.Context, reference string) (*domainmaint.Hold, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *domainmaint.Hold
	for _, h := range r.items {
		if h.Reference != reference || reference == "" {
			continue
		}
		if found == nil || h.OpenedAt.After(found.OpenedAt) {
			found = h
		}
	}
	if found == nil {
		return nil, domainmaint.ErrHoldNotFound
	}
	return found.Clone(), nil
}

func (r *HoldRepository) Active(ctx context.Context) ([]*domainmaint.Hold, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainmaint.Hold, 0)
	for _, h := range r.items {
		if h.Active() {
			out = append(out, h.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out, nil
}

func (r *HoldRepository) Save(ctx context.Context, h *domainmaint.Hold) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[h.ID] = h.Clone()
	return nil
}

var (
	_ domainacc.Repository              = (*AccommodationRepository)(nil)
	_ domaintariffs.PeriodRepository    = (*PeriodRepository)(nil)
	_ domaintariffs.PriceRuleRepository = (*PriceRuleRepository)(nil)
	_ domainmaint.Repository            = (*HoldRepository)(nil)
)
