package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"innkeep/internal/app/middleware"
	appoutbox "innkeep/internal/app/outbox"
	"innkeep/internal/app/policies"
	"innkeep/internal/app/uow"
	domainacc "innkeep/internal/domain/accommodations"
	domainmaint "innkeep/internal/domain/maintenance"
	domaintariffs "innkeep/internal/domain/tariffs"
)

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAccommodationRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewAccommodationRepository()
	acc, err := domainacc.New(domainacc.CreateParams{ID: "a1", Name: "Suite", Category: domainacc.CategoryStandard, Capacity: 2})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, acc))
	assert.EqualValues(t, 1, acc.Version)

	loaded, err := repo.ByID(ctx, "a1")
	require.NoError(t, err)
	loaded.Name = "changed"

	again, err := repo.ByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Suite", again.Name)

	_, err = repo.ByID(ctx, "missing")
	assert.ErrorIs(t, err, domainacc.ErrNotFound)
}

func TestAccommodationRepositoryListFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewAccommodationRepository()
	for _, p := range []domainacc.CreateParams{
		{ID: "b", Name: "Big", Category: domainacc.CategoryStandard, Capacity: 4},
		{ID: "a", Name: "Small", Category: domainacc.CategoryStandard, Capacity: 1},
		{ID: "c", Name: "Closed", Category: domainacc.CategoryLuxo, Capacity: 4},
	} {
		acc, err := domainacc.New(p)
		require.NoError(t, err)
		if p.ID == "c" {
			acc.BlockFor("renovation", "", nil, nil, time.Now())
		}
		require.NoError(t, repo.Save(ctx, acc))
	}

	all, err := repo.List(ctx, domainacc.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, domainacc.AccommodationID("a"), all[0].ID)

	open, err := repo.List(ctx, domainacc.Filter{MinCapacity: 2, ExcludeBlocked: true})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, domainacc.AccommodationID("b"), open[0].ID)
}

func TestPeriodRepositoryOverlappingKeepsCatalogOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewPeriodRepository()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	params := []domaintariffs.PeriodParams{
		{ID: "high", Name: "High", Start: day(1, 1), End: day(1, 31), Now: base},
		{ID: "carnival", Name: "Carnival", Start: day(2, 10), End: day(2, 14), Holiday: true, Now: base.Add(time.Hour)},
		{ID: "feb", Name: "February", Start: day(2, 1), End: day(2, 29), Now: base.Add(2 * time.Hour)},
	}
	for _, p := range params {
		period, err := domaintariffs.NewPeriod(p)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, period))
	}

	got, err := repo.Overlapping(ctx, day(1, 31), day(2, 10))
	require.NoError(t, err)
	ids := make([]domaintariffs.PeriodID, 0, len(got))
	for _, p := range got {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []domaintariffs.PeriodID{"high", "carnival", "feb"}, ids)

	got, err = repo.Overlapping(ctx, day(3, 1), day(3, 5))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHoldRepositoryTracksActiveHolds(t *testing.T) {
	ctx := context.Background()
	repo := NewHoldRepository()
	hold, err := domainmaint.OpenHold(domainmaint.OpenParams{ID: "h1", AccommodationID: "a1", Reference: "WO-1"})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, hold))

	held, err := repo.HasActiveHold(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, held)

	byRef, err := repo.ByReference(ctx, "WO-1")
	require.NoError(t, err)
	require.NoError(t, byRef.Close(time.Now()))
	require.NoError(t, repo.Save(ctx, byRef))

	held, err = repo.HasActiveHold(ctx, "a1")
	require.NoError(t, err)
	assert.False(t, held)

	active, err := repo.Active(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = repo.ByReference(ctx, "WO-2")
	assert.ErrorIs(t, err, domainmaint.ErrHoldNotFound)
}

func TestFactoryRequiresRepositories(t *testing.T) {
	_, err := Factory{}.Begin(context.Background(), uow.TxOptions{})
	assert.ErrorIs(t, err, ErrFactoryMisconfigured)

	unit, err := NewFactory().Begin(context.Background(), uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	assert.NotNil(t, unit.Holds())
	assert.NoError(t, unit.Commit(context.Background()))
}

func TestIdempotencyStoreExpiresRecords(t *testing.T) {
	ctx := context.Background()
	store := NewIdempotencyStore(time.Minute)
	now := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Save(ctx, middleware.IdempotencyRecord{Key: "k", OccurredAt: now}))
	_, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)

	now = now.Add(2 * time.Minute)
	_, found, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	assert.Equal(t, 1, store.Len())
	require.NoError(t, store.Save(ctx, middleware.IdempotencyRecord{Key: "k2", OccurredAt: now}))
	assert.Equal(t, 1, store.Len())
}

type flakyPublisher struct {
	fail      bool
	published []string
}

func (p *flakyPublisher) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if p.fail {
		return errors.New("broker down")
	}
	p.published = append(p.published, topic+"|"+key+"|"+headers["ce-type"])
	return nil
}

func TestOutboxKeepsRecordsUntilPublished(t *testing.T) {
	ctx := context.Background()
	pub := &flakyPublisher{fail: true}
	box := NewOutbox(WithPublisher(pub, "dev.", ""))
	require.NoError(t, box.Add(ctx, appoutbox.EventRecord{ID: "e1", Name: "accommodation.upserted", Aggregate: "a1", Payload: []byte(`{"capacity":2}`)}))

	assert.Error(t, box.Flush(ctx))
	assert.Equal(t, 1, box.Pending())

	pub.fail = false
	require.NoError(t, box.Flush(ctx))
	assert.Equal(t, 0, box.Pending())
	assert.Equal(t, []string{"dev.catalog.events.v1|a1|accommodation.upserted.v1"}, pub.published)
}

func TestOutboxWithoutPublisherDiscards(t *testing.T) {
	box := NewOutbox()
	require.NoError(t, box.Add(context.Background(), appoutbox.EventRecord{ID: "e1"}))
	require.NoError(t, box.Flush(context.Background()))
	assert.Equal(t, 0, box.Pending())
}

func TestQuoteJournalRecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	journal := NewQuoteJournal(3)
	entries := []policies.QuoteEntry{
		{SearchID: "s1", AccommodationID: "a", CheckIn: day(2, 1)},
		{SearchID: "s2", AccommodationID: "b", CheckIn: day(2, 2)},
		{SearchID: "s3", AccommodationID: "c", CheckIn: day(2, 1)},
		{SearchID: "s4", AccommodationID: "d", CheckIn: day(2, 1)},
	}
	require.NoError(t, journal.Record(ctx, entries))

	got, err := journal.Recent(ctx, day(2, 1).Add(15*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "s4", got[0].SearchID)
	assert.Equal(t, "s3", got[1].SearchID)

	got, err = journal.Recent(ctx, day(2, 1), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
}
