package tariffs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"innkeep/internal/domain/accommodations"
	"innkeep/internal/domain/shared/events"
	"innkeep/internal/domain/shared/money"
)

var (
	ErrRuleNotFound   = errors.New("tariffs: price rule not found")
	ErrRuleIDRequired = errors.New("tariffs: price rule id is required")
	ErrPeopleTier     = errors.New("tariffs: people tier must be at least 1")
	ErrNightlyPrice   = errors.New("tariffs: nightly price must be non-negative")
	ErrRulePeriod     = errors.New("tariffs: price rule requires a period")
	ErrDuplicateRule  = errors.New("tariffs: a rule already exists for this category, period, tier and payment method")
)

type PriceRuleID string

// PriceRule is the nightly price for one (category, period, people tier, payment method) slot.
type PriceRule struct {
	ID                PriceRuleID
	Category          accommodations.Category
	People            int
	PaymentMethod     PaymentMethod
	PeriodID          PeriodID
	Nightly           money.Money
	MinStay           int
	IncludesBreakfast bool
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
	events.EventRecorder
}

// RuleFilter selects rules by category and period. Empty fields match everything.
type RuleFilter struct {
	Category  accommodations.Category
	PeriodIDs []PeriodID
}

func (f RuleFilter) Matches(r *PriceRule) bool {
	if r == nil {
		return false
	}
	if f.Category != "" && r.Category != f.Category {
		return false
	}
	if len(f.PeriodIDs) == 0 {
		return true
	}
	for _, id := range f.PeriodIDs {
		if r.PeriodID == id {
			return true
		}
	}
	return false
}

type PriceRuleRepository interface {
	ByID(ctx context.Context, id PriceRuleID) (*PriceRule, error)
	List(ctx context.Context, filter RuleFilter) ([]*PriceRule, error)
	Save(ctx context.Context, rule *PriceRule) error
}

type RuleParams struct {
	ID                PriceRuleID
	Category          accommodations.Category
	People            int
	PaymentMethod     PaymentMethod
	PeriodID          PeriodID
	Nightly           money.Money
	MinStay           int
	IncludesBreakfast bool
	Now               time.Time
}

func (p RuleParams) normalize() (RuleParams, error) {
	if !p.Category.Valid() {
		return p, accommodations.ErrUnknownCategory
	}
	if p.People < 1 {
		return p, ErrPeopleTier
	}
	if !p.PaymentMethod.Valid() {
		return p, ErrUnknownPaymentMethod
	}
	if strings.TrimSpace(string(p.PeriodID)) == "" {
		return p, ErrRulePeriod
	}
	if p.Nightly.Currency == "" {
		return p, money.ErrInvalidCurrency
	}
	if p.Nightly.IsNegative() {
		return p, ErrNightlyPrice
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

func NewPriceRule(params RuleParams) (*PriceRule, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrRuleIDRequired
	}
	params, err := params.normalize()
	if err != nil {
		return nil, err
	}
	r := &PriceRule{
		ID:                params.ID,
		Category:          params.Category,
		People:            params.People,
		PaymentMethod:     params.PaymentMethod,
		PeriodID:          params.PeriodID,
		Nightly:           params.Nightly,
		MinStay:           params.MinStay,
		IncludesBreakfast: params.IncludesBreakfast,
		CreatedAt:         params.Now,
		UpdatedAt:         params.Now,
	}
	r.recordUpsert(params.Now)
	return r, nil
}

func (r *PriceRule) Update(params RuleParams) error {
	params, err := params.normalize()
	if err != nil {
		return err
	}
	r.Category = params.Category
	r.People = params.People
	r.PaymentMethod = params.PaymentMethod
	r.PeriodID = params.PeriodID
	r.Nightly = params.Nightly
	r.MinStay = params.MinStay
	r.IncludesBreakfast = params.IncludesBreakfast
	r.UpdatedAt = params.Now
	r.recordUpsert(params.Now)
	return nil
}

func (r *PriceRule) recordUpsert(at time.Time) {
	r.Record(PriceRuleUpsertedEvent{
		RuleID:        r.ID,
		Category:      r.Category,
		PeriodID:      r.PeriodID,
		People:        r.People,
		PaymentMethod: r.PaymentMethod,
		Nightly:       r.Nightly.Fixed(),
		Currency:      r.Nightly.Currency,
		At:            at,
	})
}

// SameSlot reports whether both rules price the same category, period, tier and method.
func (r *PriceRule) SameSlot(other *PriceRule) bool {
	return other != nil &&
		r.Category == other.Category &&
		r.PeriodID == other.PeriodID &&
		r.People == other.People &&
		r.PaymentMethod == other.PaymentMethod
}

func (r *PriceRule) Clone() *PriceRule {
	if r == nil {
		return nil
	}
	return &PriceRule{
		ID:                r.ID,
		Category:          r.Category,
		People:            r.People,
		PaymentMethod:     r.PaymentMethod,
		PeriodID:          r.PeriodID,
		Nightly:           r.Nightly,
		MinStay:           r.MinStay,
		IncludesBreakfast: r.IncludesBreakfast,
		Version:           r.Version,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func CheckDuplicate(candidate *PriceRule, existing []*PriceRule) error {
	for _, other := range existing {
		if other == nil || other.ID == candidate.ID {
			continue
		}
		if candidate.SameSlot(other) {
			return fmt.Errorf("%w: %s", ErrDuplicateRule, other.ID)
		}
	}
	return nil
}

func SortRules(rules []*PriceRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if !rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].CreatedAt.Before(rules[j].CreatedAt)
		}
		return rules[i].ID < rules[j].ID
	})
}
