package dto

import (
	"time"

	"innkeep/internal/app/services/search"
	"innkeep/internal/domain/pricing"
	"innkeep/internal/domain/shared/money"
)

// AveragePriceNotice is attached to items whose nightly price is an average over several periods.
const AveragePriceNotice = "nightly price is an average across tariff periods"

// AvailabilitySearch is the response of an availability search.
type AvailabilitySearch struct {
	Items   []AvailabilityItem  `json:"items"`
	Filters AvailabilityFilters `json:"filters"`
	Meta    AvailabilityMeta    `json:"meta"`
}

type AvailabilityItem struct {
	AccommodationID      string        `json:"accommodation_id"`
	Name                 string        `json:"name"`
	Category             string        `json:"category"`
	Capacity             int           `json:"capacity"`
	PaymentMethod        string        `json:"payment_method"`
	Currency             string        `json:"currency"`
	PricePerNight        string        `json:"price_per_night"`
	TotalPrice           *string       `json:"total_price"`
	Nights               *int          `json:"nights"`
	MinStayViolation     bool          `json:"min_stay_violation"`
	MinimumStay          int           `json:"minimum_stay"`
	IncludesBreakfast    bool          `json:"includes_breakfast"`
	SpansMultiplePeriods bool          `json:"spans_multiple_periods"`
	PriceNotice          string        `json:"price_notice,omitempty"`
	PeriodIDs            []string      `json:"period_ids"`
	ByPaymentMethod      []MethodPrice `json:"by_payment_method"`
	Nightly              []NightPrice  `json:"nightly"`
}

type MethodPrice struct {
	PaymentMethod string  `json:"payment_method"`
	PricePerNight string  `json:"price_per_night"`
	TotalPrice    *string `json:"total_price"`
}

type NightPrice struct {
	Date     string `json:"date"`
	PeriodID string `json:"period_id"`
	RuleID   string `json:"rule_id"`
	Price    string `json:"price"`
}

type AvailabilityFilters struct {
	CheckIn       string  `json:"check_in"`
	CheckOut      *string `json:"check_out"`
	Guests        int     `json:"guests"`
	PaymentMethod string  `json:"payment_method"`
}

type AvailabilityMeta struct {
	Count       int    `json:"count"`
	Candidates  int    `json:"candidates"`
	Held        int    `json:"held"`
	Unpriceable int    `json:"unpriceable"`
	Notice      string `json:"notice,omitempty"`
}

// MapAvailability converts a search result into its response shape.
func MapAvailability(res search.Result, req search.Request) AvailabilitySearch {
	items := make([]AvailabilityItem, 0, len(res.Items))
	for _, item := range res.Items {
		items = append(items, MapAvailabilityItem(item))
	}
	filters := AvailabilityFilters{
		CheckIn:       req.CheckIn.Format(time.DateOnly),
		Guests:        req.Guests,
		PaymentMethod: string(req.PaymentMethod),
	}
	if req.CheckOut != nil {
		out := req.CheckOut.Format(time.DateOnly)
		filters.CheckOut = &out
	}
	return AvailabilitySearch{
		Items:   items,
		Filters: filters,
		Meta: AvailabilityMeta{
			Count:       len(items),
			Candidates:  res.Candidates,
			Held:        res.Held,
			Unpriceable: res.Unpriceable,
			Notice:      res.Notice,
		},
	}
}

func MapAvailabilityItem(item search.Item) AvailabilityItem {
	q := item.Quote
	out := AvailabilityItem{
		PaymentMethod:        string(q.PaymentMethod),
		Currency:             q.PricePerNight.Currency,
		PricePerNight:        q.PricePerNight.Fixed(),
		TotalPrice:           fixedPtr(q.Total),
		Nights:               q.Nights,
		MinStayViolation:     q.MinStayViolation,
		MinimumStay:          q.MinimumStay,
		IncludesBreakfast:    q.IncludesBreakfast,
		SpansMultiplePeriods: q.SpansMultiplePeriods,
		PeriodIDs:            make([]string, 0, len(q.PeriodIDs)),
		ByPaymentMethod:      make([]MethodPrice, 0, len(item.ByMethod)),
		Nightly:              make([]NightPrice, 0, len(q.Lines)),
	}
	if q.SpansMultiplePeriods {
		out.PriceNotice = AveragePriceNotice
	}
	if acc := item.Accommodation; acc != nil {
		out.AccommodationID = string(acc.ID)
		out.Name = acc.Name
		out.Category = string(acc.Category)
		out.Capacity = acc.Capacity
	}
	for _, id := range q.PeriodIDs {
		out.PeriodIDs = append(out.PeriodIDs, string(id))
	}
	for _, mq := range item.ByMethod {
		out.ByPaymentMethod = append(out.ByPaymentMethod, mapMethodPrice(mq))
	}
	for _, line := range q.Lines {
		out.Nightly = append(out.Nightly, NightPrice{
			Date:     line.Date.Format(time.DateOnly),
			PeriodID: string(line.PeriodID),
			RuleID:   string(line.RuleID),
			Price:    line.Price.Fixed(),
		})
	}
	return out
}

func mapMethodPrice(mq pricing.MethodQuote) MethodPrice {
	return MethodPrice{
		PaymentMethod: string(mq.PaymentMethod),
		PricePerNight: mq.PricePerNight.Fixed(),
		TotalPrice:    fixedPtr(mq.Total),
	}
}

func fixedPtr(m *money.Money) *string {
	if m == nil {
		return nil
	}
	v := m.Fixed()
	return &v
}
