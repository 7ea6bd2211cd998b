package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"innkeep/internal/domain/accommodations"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/shared/money"
	"innkeep/internal/domain/tariffs"
)

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	acc     *accommodations.Accommodation
	periods []*tariffs.Period
	rules   []*tariffs.PriceRule
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	acc, err := accommodations.New(accommodations.CreateParams{ID: "std-1", Name: "Standard 1", Category: accommodations.CategoryStandard, Capacity: 2})
	require.NoError(t, err)
	return &fixture{acc: acc}
}

func (f *fixture) period(t *testing.T, id string, start, end time.Time, holiday bool, minStay int) {
	t.Helper()
	p, err := tariffs.NewPeriod(tariffs.PeriodParams{ID: tariffs.PeriodID(id), Name: id, Start: start, End: end, Holiday: holiday, MinStay: minStay, Now: day(1, 1).Add(time.Duration(len(f.periods)) * time.Minute)})
	require.NoError(t, err)
	f.periods = append(f.periods, p)
}

func (f *fixture) rule(t *testing.T, id, periodID string, people int, method tariffs.PaymentMethod, price string, minStay int, breakfast bool) {
	t.Helper()
	r, err := tariffs.NewPriceRule(tariffs.RuleParams{
		ID:                tariffs.PriceRuleID(id),
		Category:          accommodations.CategoryStandard,
		People:            people,
		PaymentMethod:     method,
		PeriodID:          tariffs.PeriodID(periodID),
		Nightly:           money.MustParse(price, "BRL"),
		MinStay:           minStay,
		IncludesBreakfast: breakfast,
		Now:               day(1, 1),
	})
	require.NoError(t, err)
	f.rules = append(f.rules, r)
}

func (f *fixture) engine() *Engine {
	return NewEngine(tariffs.NewSnapshot(f.periods, f.rules))
}

func stay(t *testing.T, in, out time.Time) daterange.DateRange {
	t.Helper()
	dr, err := daterange.New(in, out)
	require.NoError(t, err)
	return dr
}

func TestPriceStaySinglePeriod(t *testing.T) {
	f := newFixture(t)
	f.period(t, "low", day(1, 1), day(3, 31), false, 1)
	f.rule(t, "low-2-pix", "low", 2, tariffs.PaymentPix, "300", 1, true)

	q, err := f.engine().PriceStay(f.acc, stay(t, day(2, 1), day(2, 4)), 2, tariffs.PaymentPix)
	require.NoError(t, err)
	assert.Equal(t, "300.00", q.PricePerNight.Fixed())
	require.NotNil(t, q.Total)
	assert.Equal(t, "900.00", q.Total.Fixed())
	require.NotNil(t, q.Nights)
	assert.Equal(t, 3, *q.Nights)
	assert.False(t, q.MinStayViolation)
	assert.Equal(t, 1, q.MinimumStay)
	assert.False(t, q.SpansMultiplePeriods)
	assert.True(t, q.IncludesBreakfast)
	assert.Len(t, q.Lines, 3)
}

func TestPriceStayAverageUsesWalkedNights(t *testing.T) {
	f := newFixture(t)
	end := time.Date(2400, 1, 1, 0, 0, 0, 0, time.UTC)
	f.period(t, "open", day(1, 1), end, false, 1)
	f.rule(t, "open-2-pix", "open", 2, tariffs.PaymentPix, "100", 1, true)

	q, err := f.engine().PriceStay(f.acc, stay(t, day(1, 1), end), 2, tariffs.PaymentPix)
	require.NoError(t, err)
	require.NotNil(t, q.Nights)
	assert.Equal(t, 137331, *q.Nights)
	assert.Equal(t, "13733100.00", q.Total.Fixed())
	assert.Equal(t, "100.00", q.PricePerNight.Fixed())
}

func TestPriceStayMinimumStayViolation(t *testing.T) {
	f := newFixture(t)
	f.period(t, "low", day(1, 1), day(3, 31), false, 5)
	f.rule(t, "low-2-pix", "low", 2, tariffs.PaymentPix, "300", 1, false)

	q, err := f.engine().PriceStay(f.acc, stay(t, day(2, 1), day(2, 4)), 2, tariffs.PaymentPix)
	require.NoError(t, err)
	assert.True(t, q.MinStayViolation)
	assert.Equal(t, 5, q.MinimumStay)
}

func TestPriceStayAcrossPeriodsAverages(t *testing.T) {
	f := newFixture(t)
	f.period(t, "low", day(1, 1), day(3, 30), false, 1)
	f.period(t, "high", day(3, 31), day(6, 30), false, 2)
	f.rule(t, "low-2-pix", "low", 2, tariffs.PaymentPix, "300", 1, true)
	f.rule(t, "high-2-pix", "high", 2, tariffs.PaymentPix, "500", 1, false)

	q, err := f.engine().PriceStay(f.acc, stay(t, day(3, 29), day(4, 1)), 2, tariffs.PaymentPix)
	require.NoError(t, err)
	assert.Equal(t, "1100.00", q.Total.Fixed())
	assert.Equal(t, "366.67", q.PricePerNight.Fixed())
	assert.True(t, q.SpansMultiplePeriods)
	assert.Equal(t, []tariffs.PeriodID{"low", "high"}, q.PeriodIDs)
	assert.Equal(t, 2, q.MinimumStay)
	assert.False(t, q.MinStayViolation)
	assert.False(t, q.IncludesBreakfast)
}

func TestPriceStayUnpriceable(t *testing.T) {
	f := newFixture(t)
	f.period(t, "low", day(1, 1), day(2, 2), false, 1)
	f.rule(t, "low-2-card", "low", 2, tariffs.PaymentCard, "320", 1, false)
	engine := f.engine()

	_, err := engine.PriceStay(f.acc, stay(t, day(2, 1), day(2, 3)), 2, tariffs.PaymentPix)
	assert.ErrorIs(t, err, ErrUnpriceable)

	_, err = engine.PriceStay(f.acc, stay(t, day(2, 1), day(2, 4)), 2, tariffs.PaymentCard)
	assert.ErrorIs(t, err, ErrUnpriceable, "night of 2024-02-03 has no period")

	_, err = engine.PriceStay(f.acc, daterange.DateRange{CheckIn: day(2, 1), CheckOut: day(2, 1)}, 2, tariffs.PaymentCard)
	assert.ErrorIs(t, err, ErrUnpriceable)
}

func TestQuoteWithoutCheckOut(t *testing.T) {
	f := newFixture(t)
	f.period(t, "low", day(1, 1), day(3, 31), false, 5)
	f.rule(t, "low-1-pix", "low", 1, tariffs.PaymentPix, "250", 1, false)
	f.rule(t, "low-2-pix", "low", 2, tariffs.PaymentPix, "300", 1, false)

	q, err := f.engine().Quote(f.acc, Stay{CheckIn: day(2, 1), Guests: 3}, tariffs.PaymentPix)
	require.NoError(t, err)
	assert.Nil(t, q.Total)
	assert.Nil(t, q.Nights)
	assert.False(t, q.MinStayViolation)
	assert.Equal(t, 5, q.MinimumStay)
	assert.Equal(t, "300.00", q.PricePerNight.Fixed())
}

func TestPriceStayCurrencyMismatchIsNotUnpriceable(t *testing.T) {
	f := newFixture(t)
	f.period(t, "low", day(1, 1), day(1, 31), false, 1)
	f.period(t, "high", day(2, 1), day(2, 28), false, 1)
	f.rule(t, "low-2-pix", "low", 2, tariffs.PaymentPix, "300", 1, false)
	r, err := tariffs.NewPriceRule(tariffs.RuleParams{ID: "high-usd", Category: accommodations.CategoryStandard, People: 2, PaymentMethod: tariffs.PaymentPix, PeriodID: "high", Nightly: money.MustParse("90", "USD")})
	require.NoError(t, err)
	f.rules = append(f.rules, r)

	_, err = f.engine().PriceStay(f.acc, stay(t, day(1, 31), day(2, 2)), 2, tariffs.PaymentPix)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnpriceable)
	assert.ErrorIs(t, err, money.ErrCurrencyMismatch)
}
