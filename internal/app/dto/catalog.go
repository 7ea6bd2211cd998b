package dto

import (
	"time"

	domainacc "innkeep/internal/domain/accommodations"
	domainmaint "innkeep/internal/domain/maintenance"
	domaintariffs "innkeep/internal/domain/tariffs"
)

type AccommodationView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Category    string     `json:"category"`
	Capacity    int        `json:"capacity"`
	Blocked     bool       `json:"blocked"`
	BlockReason string     `json:"block_reason,omitempty"`
	BlockNote   string     `json:"block_note,omitempty"`
	BlockFrom   *time.Time `json:"block_from,omitempty"`
	BlockUntil  *time.Time `json:"block_until,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type PeriodView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Start     string    `json:"start"`
	End       string    `json:"end"`
	Holiday   bool      `json:"holiday"`
	MinStay   int       `json:"min_stay"`
	CreatedAt time.Time `json:"created_at"`
}

type PriceRuleView struct {
	ID                string    `json:"id"`
	Category          string    `json:"category"`
	People            int       `json:"people"`
	PaymentMethod     string    `json:"payment_method"`
	PeriodID          string    `json:"period_id"`
	Nightly           string    `json:"nightly"`
	Currency          string    `json:"currency"`
	MinStay           int       `json:"min_stay"`
	IncludesBreakfast bool      `json:"includes_breakfast"`
	CreatedAt         time.Time `json:"created_at"`
}

type HoldView struct {
	ID              string     `json:"id"`
	AccommodationID string     `json:"accommodation_id"`
	Reason          string     `json:"reason"`
	Reference       string     `json:"reference,omitempty"`
	OpenedAt        time.Time  `json:"opened_at"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
	Active          bool       `json:"active"`
}

type AccommodationList struct {
	Items []AccommodationView `json:"items"`
}

type PeriodList struct {
	Items []PeriodView `json:"items"`
}

type PriceRuleList struct {
	Items []PriceRuleView `json:"items"`
}

type HoldList struct {
	Items []HoldView `json:"items"`
}

// ResolvedPeriod answers which tariff period applies to a date.
type ResolvedPeriod struct {
	Date   string      `json:"date"`
	Found  bool        `json:"found"`
	Period *PeriodView `json:"period,omitempty"`
}

// CatalogSnapshot is the export format and the fixture format.
type CatalogSnapshot struct {
	Version        int                 `json:"version"`
	ExportedAt     time.Time           `json:"exported_at"`
	Accommodations []AccommodationView `json:"accommodations"`
	Periods        []PeriodView        `json:"periods"`
	PriceRules     []PriceRuleView     `json:"price_rules"`
}

type SnapshotExport struct {
	Key            string    `json:"key"`
	Accommodations int       `json:"accommodations"`
	Periods        int       `json:"periods"`
	PriceRules     int       `json:"price_rules"`
	ExportedAt     time.Time `json:"exported_at"`
}

func MapAccommodation(acc *domainacc.Accommodation) AccommodationView {
	if acc == nil {
		return AccommodationView{}
	}
	return AccommodationView{
		ID:          string(acc.ID),
		Name:        acc.Name,
		Category:    string(acc.Category),
		Capacity:    acc.Capacity,
		Blocked:     acc.Block.Blocked,
		BlockReason: acc.Block.Reason,
		BlockNote:   acc.Block.Note,
		BlockFrom:   acc.Block.From,
		BlockUntil:  acc.Block.Until,
		CreatedAt:   acc.CreatedAt,
		UpdatedAt:   acc.UpdatedAt,
	}
}

func MapPeriod(p *domaintariffs.Period) PeriodView {
	if p == nil {
		return PeriodView{}
	}
	return PeriodView{
		ID:        string(p.ID),
		Name:      p.Name,
		Start:     p.Start.Format(time.DateOnly),
		End:       p.End.Format(time.DateOnly),
		Holiday:   p.Holiday,
		MinStay:   p.MinStay,
		CreatedAt: p.CreatedAt,
	}
}

func MapPriceRule(r *domaintariffs.PriceRule) PriceRuleView {
	if r == nil {
		return PriceRuleView{}
	}
	return PriceRuleView{
		ID:                string(r.ID),
		Category:          string(r.Category),
		People:            r.People,
		PaymentMethod:     string(r.PaymentMethod),
		PeriodID:          string(r.PeriodID),
		Nightly:           r.Nightly.Fixed(),
		Currency:          r.Nightly.Currency,
		MinStay:           r.MinStay,
		IncludesBreakfast: r.IncludesBreakfast,
		CreatedAt:         r.CreatedAt,
	}
}

func MapHold(h *domainmaint.Hold) HoldView {
	if h == nil {
		return HoldView{}
	}
	return HoldView{
		ID:              string(h.ID),
		AccommodationID: string(h.AccommodationID),
		Reason:          h.Reason,
		Reference:       h.Reference,
		OpenedAt:        h.OpenedAt,
		ClosedAt:        h.ClosedAt,
		Active:          h.Active(),
	}
}

func MapAccommodations(items []*domainacc.Accommodation) []AccommodationView {
	out := make([]AccommodationView, 0, len(items))
	for _, acc := range items {
		out = append(out, MapAccommodation(acc))
	}
	return out
}

func MapPeriods(items []*domaintariffs.Period) []PeriodView {
	out := make([]PeriodView, 0, len(items))
	for _, p := range items {
		out = append(out, MapPeriod(p))
	}
	return out
}

func MapPriceRules(items []*domaintariffs.PriceRule) []PriceRuleView {
	out := make([]PriceRuleView, 0, len(items))
	for _, r := range items {
		out = append(out, MapPriceRule(r))
	}
	return out
}

func MapHolds(items []*domainmaint.Hold) []HoldView {
	out := make([]HoldView, 0, len(items))
	for _, h := range items {
		out = append(out, MapHold(h))
	}
	return out
}
