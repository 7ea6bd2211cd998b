package policies

import (
	"context"
	"time"
)

// QuoteEntry is one priced result as it was shown to the caller.
type QuoteEntry struct {
	SearchID        string     `json:"search_id"`
	AccommodationID string     `json:"accommodation_id"`
	CheckIn         time.Time  `json:"check_in"`
	CheckOut        *time.Time `json:"check_out,omitempty"`
	Guests          int        `json:"guests"`
	PaymentMethod   string     `json:"payment_method"`
	Currency        string     `json:"currency"`
	PricePerNight   string     `json:"price_per_night"`
	Total           *string    `json:"total,omitempty"`
	MinStayViolated bool       `json:"min_stay_violated"`
	RecordedAt      time.Time  `json:"recorded_at"`
}

// QuoteJournal keeps an append-only audit of quotes, partitioned by check-in day.
type QuoteJournal interface {
	Record(ctx context.Context, entries []QuoteEntry) error
	Recent(ctx context.Context, checkIn time.Time, limit int) ([]QuoteEntry, error)
}
