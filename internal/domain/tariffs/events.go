package tariffs

import (
	"time"

	"innkeep/internal/domain/accommodations"
)

type PeriodUpsertedEvent struct {
	PeriodID PeriodID
	Start    time.Time
	End      time.Time
	Holiday  bool
	At       time.Time
}

func (e PeriodUpsertedEvent) EventName() string     { return "tariff_period.upserted" }
func (e PeriodUpsertedEvent) AggregateID() string   { return string(e.PeriodID) }
func (e PeriodUpsertedEvent) OccurredAt() time.Time { return e.At }
func (e PeriodUpsertedEvent) CarriesState()         {}

type PriceRuleUpsertedEvent struct {
	RuleID        PriceRuleID
	Category      accommodations.Category
	PeriodID      PeriodID
	People        int
	PaymentMethod PaymentMethod
	Nightly       string
	Currency      string
	At            time.Time
}

func (e PriceRuleUpsertedEvent) EventName() string     { return "price_rule.upserted" }
func (e PriceRuleUpsertedEvent) AggregateID() string   { return string(e.RuleID) }
func (e PriceRuleUpsertedEvent) OccurredAt() time.Time { return e.At }
func (e PriceRuleUpsertedEvent) CarriesState()         {}
