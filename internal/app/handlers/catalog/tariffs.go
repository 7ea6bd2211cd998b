package catalog

import (
	"context"
	"errors"
	"strings"

	"innkeep/internal/app/dto"
	"innkeep/internal/app/uow"
	domainacc "innkeep/internal/domain/accommodations"
	"innkeep/internal/domain/shared/money"
	domaintariffs "innkeep/internal/domain/tariffs"
)

const (
	UpsertPeriodKey    = "catalog.period.upsert"
	UpsertPriceRuleKey = "catalog.price_rule.upsert"
)

type UpsertPeriodCommand struct {
	ID      string `validate:"required,max=64"`
	Name    string `validate:"required,max=120"`
	Start   string `validate:"required,datetime=2006-01-02"`
	End     string `validate:"required,datetime=2006-01-02"`
	Holiday bool
	MinStay int    `validate:"min=0,max=365"`
	IdemKey string `validate:"-"`
}

func (c UpsertPeriodCommand) Key() string            { return UpsertPeriodKey }
func (c UpsertPeriodCommand) IdempotencyKey() string { return c.IdemKey }
func (c UpsertPeriodCommand) ResultPrototype() any   { return &dto.PeriodView{} }

// UpsertPeriodHandler creates or edits a tariff period, refusing one that
// shares a day with another period of the same tier.
type UpsertPeriodHandler struct {
	Base
}

func (h *UpsertPeriodHandler) Handle(ctx context.Context, cmd UpsertPeriodCommand) (*dto.PeriodView, error) {
	unit, err := uow.Require(ctx)
	if err != nil {
		return nil, err
	}
	start, err := parseDay(cmd.Start)
	if err != nil {
		return nil, err
	}
	end, err := parseDay(cmd.End)
	if err != nil {
		return nil, err
	}
	params := domaintariffs.PeriodParams{
		ID:      domaintariffs.PeriodID(strings.TrimSpace(cmd.ID)),
		Name:    cmd.Name,
		Start:   start,
		End:     end,
		Holiday: cmd.Holiday,
		MinStay: cmd.MinStay,
		Now:     h.now(),
	}

	period, err := unit.Periods().ByID(ctx, params.ID)
	switch {
	case errors.Is(err, domaintariffs.ErrPeriodNotFound):
		period, err = domaintariffs.NewPeriod(params)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := period.Update(params); err != nil {
			return nil, err
		}
	}

	neighbours, err := unit.Periods().Overlapping(ctx, period.Start, period.End)
	if err != nil {
		return nil, err
	}
	if err := domaintariffs.CheckOverlap(period, neighbours); err != nil {
		return nil, err
	}
	if err := unit.Periods().Save(ctx, period); err != nil {
		return nil, err
	}
	if err := h.record(ctx, period); err != nil {
		return nil, err
	}
	h.logger().InfoContext(ctx, "tariff period upserted", "period_id", period.ID, "holiday", period.Holiday, "min_stay", period.MinStay)
	view := dto.MapPeriod(period)
	return &view, nil
}

type UpsertPriceRuleCommand struct {
	ID                string `validate:"required,max=64"`
	Category          string `validate:"required"`
	People            int    `validate:"min=1,max=64"`
	PaymentMethod     string `validate:"required"`
	PeriodID          string `validate:"required"`
	Nightly           string `validate:"required,numeric"`
	Currency          string `validate:"omitempty,len=3"`
	MinStay           int    `validate:"min=0,max=365"`
	IncludesBreakfast bool
	IdemKey           string `validate:"-"`
}

func (c UpsertPriceRuleCommand) Key() string            { return UpsertPriceRuleKey }
func (c UpsertPriceRuleCommand) IdempotencyKey() string { return c.IdemKey }
func (c UpsertPriceRuleCommand) ResultPrototype() any   { return &dto.PriceRuleView{} }

type UpsertPriceRuleHandler struct {
	Base
	DefaultCurrency string
}

func (h *UpsertPriceRuleHandler) Handle(ctx context.Context, cmd UpsertPriceRuleCommand) (*dto.PriceRuleView, error) {
	unit, err := uow.Require(ctx)
	if err != nil {
		return nil, err
	}
	category, err := domainacc.ParseCategory(cmd.Category)
	if err != nil {
		return nil, err
	}
	method, err := domaintariffs.ParsePaymentMethod(cmd.PaymentMethod)
	if err != nil {
		return nil, err
	}
	currency := cmd.Currency
	if currency == "" {
		currency = h.DefaultCurrency
	}
	if currency == "" {
		currency = money.DefaultCurrency
	}
	nightly, err := money.Parse(cmd.Nightly, currency)
	if err != nil {
		return nil, err
	}
	periodID := domaintariffs.PeriodID(strings.TrimSpace(cmd.PeriodID))
	if _, err := unit.Periods().ByID(ctx, periodID); err != nil {
		return nil, err
	}
	params := domaintariffs.RuleParams{
		ID:                domaintariffs.PriceRuleID(strings.TrimSpace(cmd.ID)),
		Category:          category,
		People:            cmd.People,
		PaymentMethod:     method,
		PeriodID:          periodID,
		Nightly:           nightly,
		MinStay:           cmd.MinStay,
		IncludesBreakfast: cmd.IncludesBreakfast,
		Now:               h.now(),
	}

	rule, err := unit.PriceRules().ByID(ctx, params.ID)
	switch {
	case errors.Is(err, domaintariffs.ErrRuleNotFound):
		rule, err = domaintariffs.NewPriceRule(params)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := rule.Update(params); err != nil {
			return nil, err
		}
	}

	siblings, err := unit.PriceRules().List(ctx, domaintariffs.RuleFilter{Category: category, PeriodIDs: []domaintariffs.PeriodID{periodID}})
	if err != nil {
		return nil, err
	}
	if err := domaintariffs.CheckDuplicate(rule, siblings); err != nil {
		return nil, err
	}
	if err := unit.PriceRules().Save(ctx, rule); err != nil {
		return nil, err
	}
	if err := h.record(ctx, rule); err != nil {
		return nil, err
	}
	h.logger().InfoContext(ctx, "price rule upserted", "rule_id", rule.ID, "period_id", rule.PeriodID, "category", rule.Category, "people", rule.People, "payment_method", rule.PaymentMethod)
	view := dto.MapPriceRule(rule)
	return &view, nil
}
