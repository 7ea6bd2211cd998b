package tariffs

import (
	"time"

	"innkeep/internal/domain/accommodations"
)

type slotKey struct {
	category accommodations.Category
	period   PeriodID
}

// Snapshot is an immutable view of periods and price rules for one search.
type Snapshot struct {
	periods []*Period
	rules   []*PriceRule
	bySlot  map[slotKey][]*PriceRule
}

// NewSnapshot copies the inputs and sorts them by catalog order.
func NewSnapshot(periods []*Period, rules []*PriceRule) *Snapshot {
	s := &Snapshot{
		periods: make([]*Period, 0, len(periods)),
		rules:   make([]*PriceRule, 0, len(rules)),
		bySlot:  make(map[slotKey][]*PriceRule),
	}
	for _, p := range periods {
		if p != nil {
			s.periods = append(s.periods, p.Clone())
		}
	}
	for _, r := range rules {
		if r != nil {
			s.rules = append(s.rules, r.Clone())
		}
	}
	SortPeriods(s.periods)
	SortRules(s.rules)
	for _, r := range s.rules {
		key := slotKey{category: r.Category, period: r.PeriodID}
		s.bySlot[key] = append(s.bySlot[key], r)
	}
	return s
}

func (s *Snapshot) Periods() []*Period {
	out := make([]*Period, len(s.periods))
	for i, p := range s.periods {
		out[i] = p.Clone()
	}
	return out
}

func (s *Snapshot) Rules() []*PriceRule {
	out := make([]*PriceRule, len(s.rules))
	for i, r := range s.rules {
		out[i] = r.Clone()
	}
	return out
}

// ResolvePeriod returns the period covering day. Holiday periods win over
// regular ones; within a tier the first period in catalog order wins.
func (s *Snapshot) ResolvePeriod(day time.Time) (*Period, bool) {
	var regular *Period
	for _, p := range s.periods {
		if !p.Contains(day) {
			continue
		}
		if p.Holiday {
			return p, true
		}
		if regular == nil {
			regular = p
		}
	}
	return regular, regular != nil
}

// CompatiblePrices returns at most one rule per payment method: the one with
// the largest people tier not above capacity and not above guests.
func (s *Snapshot) CompatiblePrices(category accommodations.Category, capacity int, periodID PeriodID, guests int) []*PriceRule {
	limit := min(capacity, guests)
	if limit < 1 {
		return nil
	}
	best := make(map[PaymentMethod]*PriceRule, 2)
	for _, r := range s.bySlot[slotKey{category: category, period: periodID}] {
		if r.People > limit {
			continue
		}
		if current, ok := best[r.PaymentMethod]; !ok || r.People > current.People {
			best[r.PaymentMethod] = r
		}
	}
	out := make([]*PriceRule, 0, len(best))
	for _, method := range PaymentMethods() {
		if r, ok := best[method]; ok {
			out = append(out, r)
		}
	}
	return out
}

// PriceFor narrows CompatiblePrices to one payment method.
func (s *Snapshot) PriceFor(category accommodations.Category, capacity int, periodID PeriodID, guests int, method PaymentMethod) (*PriceRule, bool) {
	for _, r := range s.CompatiblePrices(category, capacity, periodID, guests) {
		if r.PaymentMethod == method {
			return r, true
		}
	}
	return nil, false
}
