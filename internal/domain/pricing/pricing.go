package pricing

import (
	"errors"
	"fmt"
	"time"

	"innkeep/internal/domain/accommodations"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/shared/money"
	"innkeep/internal/domain/tariffs"
)

// ErrUnpriceable marks a stay the catalog cannot price. It excludes the
// accommodation from results rather than failing the search.
var ErrUnpriceable = errors.New("pricing: stay cannot be priced")

// NightLine is the price applied to one night of a stay.
type NightLine struct {
	Date     time.Time
	PeriodID tariffs.PeriodID
	RuleID   tariffs.PriceRuleID
	Price    money.Money
}

// StayQuote is the priced outcome for one accommodation and payment method.
// Total and Nights stay nil for check-in-only quotes.
type StayQuote struct {
	AccommodationID      accommodations.AccommodationID
	PaymentMethod        tariffs.PaymentMethod
	PricePerNight        money.Money
	Total                *money.Money
	Nights               *int
	MinStayViolation     bool
	MinimumStay          int
	IncludesBreakfast    bool
	SpansMultiplePeriods bool
	PeriodIDs            []tariffs.PeriodID
	Lines                []NightLine
}

// MethodQuote is the short per-payment-method view attached to search results.
type MethodQuote struct {
	PaymentMethod tariffs.PaymentMethod
	PricePerNight money.Money
	Total         *money.Money
}

func (q StayQuote) MethodQuote() MethodQuote {
	return MethodQuote{PaymentMethod: q.PaymentMethod, PricePerNight: q.PricePerNight, Total: q.Total}
}

// Stay describes what a guest asks for. CheckOut is optional.
type Stay struct {
	CheckIn  time.Time
	CheckOut *time.Time
	Guests   int
}

// Engine prices stays against one immutable catalog snapshot.
type Engine struct {
	snapshot *tariffs.Snapshot
}

func NewEngine(snapshot *tariffs.Snapshot) *Engine {
	if snapshot == nil {
		snapshot = tariffs.NewSnapshot(nil, nil)
	}
	return &Engine{snapshot: snapshot}
}

// Quote prices the full stay when a check-out is known, otherwise only the check-in night.
func (e *Engine) Quote(acc *accommodations.Accommodation, stay Stay, method tariffs.PaymentMethod) (StayQuote, error) {
	if stay.CheckOut == nil {
		return e.QuoteNight(acc, stay.CheckIn, stay.Guests, method)
	}
	return e.PriceStay(acc, daterange.DateRange{CheckIn: daterange.Day(stay.CheckIn), CheckOut: daterange.Day(*stay.CheckOut)}, stay.Guests, method)
}

// PriceStay walks every night of [CheckIn, CheckOut), resolving period and rule per night.
func (e *Engine) PriceStay(acc *accommodations.Accommodation, stay daterange.DateRange, guests int, method tariffs.PaymentMethod) (StayQuote, error) {
	each := stay.EachNight()
	nights := len(each)
	if nights == 0 {
		return StayQuote{}, fmt.Errorf("%w: stay has no nights", ErrUnpriceable)
	}
	q, total, err := e.walk(acc, each, guests, method)
	if err != nil {
		return StayQuote{}, err
	}
	q.Total = &total
	q.Nights = &nights
	q.PricePerNight = total.Average(nights)
	q.MinStayViolation = nights < q.MinimumStay
	return q, nil
}

// QuoteNight prices the single night starting on day. Without a check-out the
// minimum stay is reported but never flagged as violated.
func (e *Engine) QuoteNight(acc *accommodations.Accommodation, day time.Time, guests int, method tariffs.PaymentMethod) (StayQuote, error) {
	q, total, err := e.walk(acc, []time.Time{daterange.Day(day)}, guests, method)
	if err != nil {
		return StayQuote{}, err
	}
	q.PricePerNight = total
	return q, nil
}

func (e *Engine) walk(acc *accommodations.Accommodation, nights []time.Time, guests int, method tariffs.PaymentMethod) (StayQuote, money.Money, error) {
	if acc == nil {
		return StayQuote{}, money.Money{}, fmt.Errorf("%w: accommodation missing", ErrUnpriceable)
	}
	q := StayQuote{
		AccommodationID:   acc.ID,
		PaymentMethod:     method,
		IncludesBreakfast: true,
		Lines:             make([]NightLine, 0, len(nights)),
	}
	var total money.Money
	check := tariffs.MinStayCheck{Required: 1}
	seen := make(map[tariffs.PeriodID]struct{})
	for i, night := range nights {
		period, ok := e.snapshot.ResolvePeriod(night)
		if !ok {
			return StayQuote{}, money.Money{}, fmt.Errorf("%w: no tariff period covers %s", ErrUnpriceable, night.Format(time.DateOnly))
		}
		rule, ok := e.snapshot.PriceFor(acc.Category, acc.Capacity, period.ID, guests, method)
		if !ok {
			return StayQuote{}, money.Money{}, fmt.Errorf("%w: no %s rule for %s in period %s", ErrUnpriceable, method, acc.Category, period.ID)
		}
		if i == 0 {
			total = rule.Nightly
		} else {
			sum, err := total.Add(rule.Nightly)
			if err != nil {
				return StayQuote{}, money.Money{}, fmt.Errorf("pricing: accommodation %s: %w", acc.ID, err)
			}
			total = sum
		}
		check = check.Merge(tariffs.CheckMinStay(nil, period.MinStay, rule.MinStay))
		if !rule.IncludesBreakfast {
			q.IncludesBreakfast = false
		}
		if _, ok := seen[period.ID]; !ok {
			seen[period.ID] = struct{}{}
			q.PeriodIDs = append(q.PeriodIDs, period.ID)
		}
		q.Lines = append(q.Lines, NightLine{Date: night, PeriodID: period.ID, RuleID: rule.ID, Price: rule.Nightly})
	}
	q.MinimumStay = check.Required
	q.SpansMultiplePeriods = len(q.PeriodIDs) > 1
	return q, total, nil
}
