package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"innkeep/internal/app/dto"
	"innkeep/internal/app/handlers/support"
	"innkeep/internal/app/policies"
	"innkeep/internal/app/uow"
	domainacc "innkeep/internal/domain/accommodations"
	domaintariffs "innkeep/internal/domain/tariffs"
)

const (
	ListAccommodationsKey = "catalog.accommodations.list"
	ListPeriodsKey        = "catalog.periods.list"
	ListPriceRulesKey     = "catalog.price_rules.list"
	ListHoldsKey          = "maintenance.holds.list"
	ResolvePeriodKey      = "catalog.period.resolve"
	RecentQuotesKey       = "quotes.recent"
)

type ListAccommodationsQuery struct {
	MinCapacity    int `validate:"min=0"`
	IncludeBlocked bool
}

func (q ListAccommodationsQuery) Key() string { return ListAccommodationsKey }
func (q ListAccommodationsQuery) CacheKey() string {
	return fmt.Sprintf("%d|%t", q.MinCapacity, q.IncludeBlocked)
}
func (q ListAccommodationsQuery) ResultPrototype() any { return &dto.AccommodationList{} }

type ListAccommodationsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListAccommodationsHandler) Handle(ctx context.Context, q ListAccommodationsQuery) (dto.AccommodationList, error) {
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.AccommodationList{}, err
	}
	defer cleanup()
	items, err := unit.Accommodations().List(ctx, domainacc.Filter{MinCapacity: q.MinCapacity, ExcludeBlocked: !q.IncludeBlocked})
	if err != nil {
		return dto.AccommodationList{}, err
	}
	return dto.AccommodationList{Items: dto.MapAccommodations(items)}, nil
}

type ListPeriodsQuery struct{}

func (q ListPeriodsQuery) Key() string          { return ListPeriodsKey }
func (q ListPeriodsQuery) CacheKey() string     { return "all" }
func (q ListPeriodsQuery) ResultPrototype() any { return &dto.PeriodList{} }

type ListPeriodsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListPeriodsHandler) Handle(ctx context.Context, q ListPeriodsQuery) (dto.PeriodList, error) {
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.PeriodList{}, err
	}
	defer cleanup()
	items, err := unit.Periods().List(ctx)
	if err != nil {
		return dto.PeriodList{}, err
	}
	domaintariffs.SortPeriods(items)
	return dto.PeriodList{Items: dto.MapPeriods(items)}, nil
}

type ListPriceRulesQuery struct {
	Category string
	PeriodID string `validate:"max=64"`
}

func (q ListPriceRulesQuery) Key() string { return ListPriceRulesKey }
func (q ListPriceRulesQuery) CacheKey() string {
	return strings.ToUpper(q.Category) + "|" + q.PeriodID
}
func (q ListPriceRulesQuery) ResultPrototype() any { return &dto.PriceRuleList{} }

type ListPriceRulesHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListPriceRulesHandler) Handle(ctx context.Context, q ListPriceRulesQuery) (dto.PriceRuleList, error) {
	filter := domaintariffs.RuleFilter{}
	if strings.TrimSpace(q.Category) != "" {
		category, err := domainacc.ParseCategory(q.Category)
		if err != nil {
			return dto.PriceRuleList{}, err
		}
		filter.Category = category
	}
	if id := strings.TrimSpace(q.PeriodID); id != "" {
		filter.PeriodIDs = []domaintariffs.PeriodID{domaintariffs.PeriodID(id)}
	}
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.PriceRuleList{}, err
	}
	defer cleanup()
	items, err := unit.PriceRules().List(ctx, filter)
	if err != nil {
		return dto.PriceRuleList{}, err
	}
	domaintariffs.SortRules(items)
	return dto.PriceRuleList{Items: dto.MapPriceRules(items)}, nil
}

type ListHoldsQuery struct{}

func (q ListHoldsQuery) Key() string { return ListHoldsKey }

type ListHoldsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListHoldsHandler) Handle(ctx context.Context, q ListHoldsQuery) (dto.HoldList, error) {
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.HoldList{}, err
	}
	defer cleanup()
	items, err := unit.Holds().Active(ctx)
	if err != nil {
		return dto.HoldList{}, err
	}
	return dto.HoldList{Items: dto.MapHolds(items)}, nil
}

// ResolvePeriodQuery exposes the period resolver for a single date.
type ResolvePeriodQuery struct {
	Date string `validate:"required,datetime=2006-01-02"`
}

func (q ResolvePeriodQuery) Key() string          { return ResolvePeriodKey }
func (q ResolvePeriodQuery) CacheKey() string     { return q.Date }
func (q ResolvePeriodQuery) ResultPrototype() any { return &dto.ResolvedPeriod{} }

type ResolvePeriodHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ResolvePeriodHandler) Handle(ctx context.Context, q ResolvePeriodQuery) (dto.ResolvedPeriod, error) {
	day, err := parseDay(q.Date)
	if err != nil {
		return dto.ResolvedPeriod{}, err
	}
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.ResolvedPeriod{}, err
	}
	defer cleanup()
	periods, err := unit.Periods().Overlapping(ctx, day, day)
	if err != nil {
		return dto.ResolvedPeriod{}, err
	}
	out := dto.ResolvedPeriod{Date: day.Format(time.DateOnly)}
	if period, ok := domaintariffs.NewSnapshot(periods, nil).ResolvePeriod(day); ok {
		view := dto.MapPeriod(period)
		out.Found = true
		out.Period = &view
	}
	return out, nil
}

type RecentQuotesQuery struct {
	Date  string `validate:"required,datetime=2006-01-02"`
	Limit int    `validate:"min=0,max=500"`
}

func (q RecentQuotesQuery) Key() string { return RecentQuotesKey }

type RecentQuotesHandler struct {
	Journal policies.QuoteJournal
}

func (h *RecentQuotesHandler) Handle(ctx context.Context, q RecentQuotesQuery) ([]policies.QuoteEntry, error) {
	if h.Journal == nil {
		return []policies.QuoteEntry{}, nil
	}
	day, err := parseDay(q.Date)
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit == 0 {
		limit = 50
	}
	return h.Journal.Recent(ctx, day, limit)
}
