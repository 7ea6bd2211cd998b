package search_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"innkeep/internal/app/dto"
	searchapp "innkeep/internal/app/handlers/search"
	"innkeep/internal/app/middleware"
	"innkeep/internal/app/policies"
	"innkeep/internal/app/queries"
	svcsearch "innkeep/internal/app/services/search"
)

type recordingJournal struct {
	mu      sync.Mutex
	batches [][]policies.QuoteEntry
	err     error
}

func (j *recordingJournal) Record(ctx context.Context, entries []policies.QuoteEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.batches = append(j.batches, entries)
	return j.err
}

func (j *recordingJournal) Recent(ctx context.Context, checkIn time.Time, limit int) ([]policies.QuoteEntry, error) {
	return nil, nil
}

type singleSlotCache struct {
	payload []byte
}

func (c *singleSlotCache) Generation(ctx context.Context) (int64, error) { return 0, nil }

func (c *singleSlotCache) Get(ctx context.Context, gen int64, key string) ([]byte, bool, error) {
	return c.payload, c.payload != nil, nil
}

func (c *singleSlotCache) Set(ctx context.Context, gen int64, key string, payload []byte, ttl time.Duration) error {
	c.payload = payload
	return nil
}

func (c *singleSlotCache) Invalidate(ctx context.Context) error {
	c.payload = nil
	return nil
}

func searchBus(t *testing.T, journal policies.QuoteJournal, calls *int) queries.Bus {
	t.Helper()
	total := "900.00"
	bus := queries.NewInMemoryBus()
	queries.RegisterHandler[searchapp.SearchAvailabilityQuery, dto.AvailabilitySearch](bus, searchapp.SearchAvailabilityKey,
		queries.HandlerFunc[searchapp.SearchAvailabilityQuery, dto.AvailabilitySearch](
			func(ctx context.Context, q searchapp.SearchAvailabilityQuery) (dto.AvailabilitySearch, error) {
				*calls++
				return dto.AvailabilitySearch{Items: []dto.AvailabilityItem{{
					AccommodationID: "101",
					PaymentMethod:   "PIX",
					Currency:        "BRL",
					PricePerNight:   "300.00",
					TotalPrice:      &total,
				}}}, nil
			}))
	return middleware.ChainQueries(bus,
		searchapp.JournalQuotes(journal, nil),
		middleware.QueryCache(&singleSlotCache{}, time.Minute, nil, nil),
	)
}

func TestJournalQuotesRecordsCachedAnswers(t *testing.T) {
	journal := &recordingJournal{}
	calls := 0
	bus := searchBus(t, journal, &calls)
	q := searchapp.SearchAvailabilityQuery{CheckIn: "2026-02-01", CheckOut: "2026-02-04", Guests: 2, PaymentMethod: "pix"}

	for i := 0; i < 2; i++ {
		_, err := queries.Ask[searchapp.SearchAvailabilityQuery, dto.AvailabilitySearch](context.Background(), bus, q)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, calls)
	require.Len(t, journal.batches, 2)
	for _, batch := range journal.batches {
		require.Len(t, batch, 1)
		assert.Equal(t, "101", batch[0].AccommodationID)
		assert.Equal(t, 2, batch[0].Guests)
		require.NotNil(t, batch[0].CheckOut)
	}
	assert.NotEqual(t, journal.batches[0][0].SearchID, journal.batches[1][0].SearchID)
}

func TestJournalQuotesNeverFailsTheSearch(t *testing.T) {
	journal := &recordingJournal{err: errors.New("scylla unavailable")}
	calls := 0
	bus := searchBus(t, journal, &calls)

	res, err := queries.Ask[searchapp.SearchAvailabilityQuery, dto.AvailabilitySearch](context.Background(), bus,
		searchapp.SearchAvailabilityQuery{CheckIn: "2026-02-01", Guests: 2, PaymentMethod: "pix"})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)
	assert.Len(t, journal.batches, 1)
}

func TestSearchQueryRejectsOverlongStay(t *testing.T) {
	_, err := searchapp.SearchAvailabilityQuery{CheckIn: "2024-01-01", CheckOut: "2400-01-01", Guests: 2, PaymentMethod: "pix"}.Request()
	assert.ErrorIs(t, err, svcsearch.ErrInvalidRequest)
}
