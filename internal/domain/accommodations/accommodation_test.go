package accommodations

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategoryAcceptsAliases(t *testing.T) {
	cases := map[string]Category{
		"standard":   CategoryStandard,
		"Luxo":       CategoryLuxo,
		"Super Luxo": CategorySuperLuxo,
		"super-luxo": CategorySuperLuxo,
		"SUPERLUXO":  CategorySuperLuxo,
		" master ":   CategoryMaster,
	}
	for raw, want := range cases {
		got, err := ParseCategory(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
	_, err := ParseCategory("penthouse")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestNewValidatesInvariants(t *testing.T) {
	_, err := New(CreateParams{ID: "a1", Name: "Suite", Category: CategoryStandard, Capacity: 0})
	assert.ErrorIs(t, err, ErrCapacity)

	_, err = New(CreateParams{ID: "a1", Name: "Suite", Category: "VIP", Capacity: 2})
	assert.ErrorIs(t, err, ErrUnknownCategory)

	acc, err := New(CreateParams{ID: "a1", Name: " Suite 101 ", Category: CategoryStandard, Capacity: 2})
	require.NoError(t, err)
	assert.Equal(t, "Suite 101", acc.Name)
	require.Len(t, acc.PendingEvents(), 1)
	assert.Equal(t, "accommodation.upserted", acc.PendingEvents()[0].EventName())
}

func TestUpdateKeepsCategory(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	acc, err := New(CreateParams{ID: "a1", Name: "Suite", Category: CategoryLuxo, Capacity: 2, Now: now})
	require.NoError(t, err)

	err = acc.Update("Suite", CategoryMaster, 2, now)
	assert.ErrorIs(t, err, ErrCategoryImmutable)

	require.NoError(t, acc.Update("Suite Deluxe", CategoryLuxo, 4, now.Add(time.Hour)))
	assert.Equal(t, 4, acc.Capacity)
	assert.Equal(t, CategoryLuxo, acc.Category)
}

func TestBlockAndFilter(t *testing.T) {
	now := time.Now().UTC()
	acc, err := New(CreateParams{ID: "a1", Name: "Suite", Category: CategoryStandard, Capacity: 2, Now: now})
	require.NoError(t, err)
	acc.ClearEvents()

	filter := Filter{MinCapacity: 2, ExcludeBlocked: true}
	assert.True(t, filter.Matches(acc))
	assert.False(t, Filter{MinCapacity: 3}.Matches(acc))

	acc.BlockFor("leak", "bathroom", nil, nil, now)
	assert.False(t, acc.Available())
	assert.False(t, filter.Matches(acc))
	assert.True(t, Filter{MinCapacity: 2}.Matches(acc))

	acc.Unblock(now)
	assert.True(t, acc.Available())
	names := []string{}
	for _, ev := range acc.PendingEvents() {
		names = append(names, ev.EventName())
	}
	assert.Equal(t, []string{"accommodation.blocked", "accommodation.unblocked"}, names)
}

func TestCloneDropsEventsAndCopiesDates(t *testing.T) {
	now := time.Now().UTC()
	acc, err := New(CreateParams{ID: "a1", Name: "Suite", Category: CategoryStandard, Capacity: 2, Now: now})
	require.NoError(t, err)
	until := now.Add(48 * time.Hour)
	acc.BlockFor("works", "", nil, &until, now)

	clone := acc.Clone()
	assert.Empty(t, clone.PendingEvents())
	require.NotNil(t, clone.Block.Until)
	*clone.Block.Until = now
	assert.Equal(t, until, *acc.Block.Until)
}
