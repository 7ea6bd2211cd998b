package scylla

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gocql/gocql"

	"innkeep/internal/app/policies"
	"innkeep/internal/domain/shared/daterange"
)

const defaultRecentLimit = 50

// Journal appends quotes to quotes_by_day, one partition per check-in day.
type Journal struct {
	session *gocql.Session
	logger  *slog.Logger
}

func NewJournal(session *gocql.Session, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{session: session, logger: logger}
}

func (j *Journal) Record(ctx context.Context, entries []policies.QuoteEntry) error {
	if j.session == nil {
		return errors.New("scylla session not initialized")
	}
	var errs []error
	for _, e := range entries {
		recorded := e.RecordedAt
		if recorded.IsZero() {
			recorded = time.Now().UTC()
		}
		err := j.session.
			Query(`INSERT INTO quotes_by_day (check_in_day, entry_id, search_id, accommodation_id, check_in, check_out, guests, payment_method, currency, price_per_night, total, min_stay_violated, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				dayKey(e.CheckIn), gocql.UUIDFromTime(recorded), e.SearchID, e.AccommodationID, e.CheckIn, e.CheckOut,
				e.Guests, e.PaymentMethod, e.Currency, e.PricePerNight, e.Total, e.MinStayViolated, recorded).
			WithContext(ctx).
			Consistency(gocql.One).
			Exec()
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recent lists the newest entries for checkIn's day.
func (j *Journal) Recent(ctx context.Context, checkIn time.Time, limit int) ([]policies.QuoteEntry, error) {
	if j.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	iter := j.session.
		Query(`SELECT search_id, accommodation_id, check_in, check_out, guests, payment_method, currency, price_per_night, total, min_stay_violated, recorded_at FROM quotes_by_day WHERE check_in_day = ? LIMIT ?`, dayKey(checkIn), limit).
		WithContext(ctx).
		Consistency(gocql.One).
		Iter()

	out := make([]policies.QuoteEntry, 0)
	var (
		e        policies.QuoteEntry
		checkOut time.Time
		total    string
	)
	for iter.Scan(&e.SearchID, &e.AccommodationID, &e.CheckIn, &checkOut, &e.Guests, &e.PaymentMethod, &e.Currency, &e.PricePerNight, &total, &e.MinStayViolated, &e.RecordedAt) {
		entry := e
		entry.CheckIn = entry.CheckIn.UTC()
		entry.RecordedAt = entry.RecordedAt.UTC()
		if !checkOut.IsZero() {
			co := checkOut.UTC()
			entry.CheckOut = &co
		}
		if total != "" {
			t := total
			entry.Total = &t
		}
		out = append(out, entry)
		checkOut, total = time.Time{}, ""
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

func dayKey(t time.Time) string {
	return daterange.Day(t).Format(time.DateOnly)
}

var _ policies.QuoteJournal = (*Journal)(nil)
