package search

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"innkeep/internal/domain/accommodations"
	"innkeep/internal/domain/shared/money"
	"innkeep/internal/domain/tariffs"
)

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
}

type stubAccommodations struct {
	items []*accommodations.Accommodation
	err   error
	calls atomic.Int32
}

func (s *stubAccommodations) ByID(ctx context.Context, id accommodations.AccommodationID) (*accommodations.Accommodation, error) {
	return nil, accommodations.ErrNotFound
}

func (s *stubAccommodations) List(ctx context.Context, filter accommodations.Filter) ([]*accommodations.Accommodation, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	out := []*accommodations.Accommodation{}
	for _, a := range s.items {
		if filter.Matches(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubAccommodations) Save(ctx context.Context, acc *accommodations.Accommodation) error {
	return nil
}

type stubPeriods struct {
	items []*tariffs.Period
	err   error
}

func (s *stubPeriods) ByID(ctx context.Context, id tariffs.PeriodID) (*tariffs.Period, error) {
	return nil, tariffs.ErrPeriodNotFound
}

func (s *stubPeriods) List(ctx context.Context) ([]*tariffs.Period, error) {
	return s.items, s.err
}

func (s *stubPeriods) Overlapping(ctx context.Context, from, to time.Time) ([]*tariffs.Period, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := []*tariffs.Period{}
	for _, p := range s.items {
		if p.Overlaps(from, to) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubPeriods) Save(ctx context.Context, p *tariffs.Period) error { return nil }

type stubRules struct {
	items []*tariffs.PriceRule
	err   error
}

func (s *stubRules) ByID(ctx context.Context, id tariffs.PriceRuleID) (*tariffs.PriceRule, error) {
	return nil, tariffs.ErrRuleNotFound
}

func (s *stubRules) List(ctx context.Context, filter tariffs.RuleFilter) ([]*tariffs.PriceRule, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := []*tariffs.PriceRule{}
	for _, r := range s.items {
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubRules) Save(ctx context.Context, r *tariffs.PriceRule) error { return nil }

type stubHolds map[accommodations.AccommodationID]bool

func (s stubHolds) HasActiveHold(ctx context.Context, id accommodations.AccommodationID) (bool, error) {
	return s[id], nil
}

type catalog struct {
	accs    *stubAccommodations
	periods *stubPeriods
	rules   *stubRules
	holds   stubHolds
}

func newCatalog() *catalog {
	return &catalog{accs: &stubAccommodations{}, periods: &stubPeriods{}, rules: &stubRules{}, holds: stubHolds{}}
}

func (c *catalog) sources() Sources {
	return Sources{Accommodations: c.accs, Periods: c.periods, PriceRules: c.rules, Holds: c.holds}
}

func (c *catalog) acc(t *testing.T, id, name string, category accommodations.Category, capacity int) *accommodations.Accommodation {
	t.Helper()
	a, err := accommodations.New(accommodations.CreateParams{ID: accommodations.AccommodationID(id), Name: name, Category: category, Capacity: capacity})
	require.NoError(t, err)
	c.accs.items = append(c.accs.items, a)
	return a
}

func (c *catalog) period(t *testing.T, id string, start, end time.Time, holiday bool, minStay int) {
	t.Helper()
	p, err := tariffs.NewPeriod(tariffs.PeriodParams{ID: tariffs.PeriodID(id), Name: id, Start: start, End: end, Holiday: holiday, MinStay: minStay, Now: day(1, 1).Add(time.Duration(len(c.periods.items)) * time.Minute)})
	require.NoError(t, err)
	c.periods.items = append(c.periods.items, p)
}

func (c *catalog) rule(t *testing.T, category accommodations.Category, periodID string, people int, method tariffs.PaymentMethod, price string) {
	t.Helper()
	id := string(category) + "-" + periodID + "-" + string(method) + "-" + string(rune('0'+people))
	r, err := tariffs.NewPriceRule(tariffs.RuleParams{
		ID:            tariffs.PriceRuleID(id),
		Category:      category,
		People:        people,
		PaymentMethod: method,
		PeriodID:      tariffs.PeriodID(periodID),
		Nightly:       money.MustParse(price, "BRL"),
		Now:           day(1, 1),
	})
	require.NoError(t, err)
	c.rules.items = append(c.rules.items, r)
}

func ptr(t time.Time) *time.Time { return &t }

func lowSeasonCatalog(t *testing.T, minStay int) *catalog {
	c := newCatalog()
	c.acc(t, "std-1", "Standard 1", accommodations.CategoryStandard, 2)
	c.period(t, "low", day(1, 1), day(3, 31), false, minStay)
	c.rule(t, accommodations.CategoryStandard, "low", 2, tariffs.PaymentPix, "300")
	return c
}

func TestSearchScenarioSinglePeriod(t *testing.T) {
	c := lowSeasonCatalog(t, 1)
	svc := &Service{}

	res, err := svc.Search(context.Background(), c.sources(), Request{CheckIn: day(2, 1), CheckOut: ptr(day(2, 4)), Guests: 2, PaymentMethod: tariffs.PaymentPix})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	q := res.Items[0].Quote
	assert.Equal(t, "300.00", q.PricePerNight.Fixed())
	assert.Equal(t, "900.00", q.Total.Fixed())
	assert.Equal(t, 3, *q.Nights)
	assert.False(t, q.MinStayViolation)
	assert.Empty(t, res.Notice)
}

func TestSearchScenarioMinimumStay(t *testing.T) {
	c := lowSeasonCatalog(t, 5)
	res, err := (&Service{}).Search(context.Background(), c.sources(), Request{CheckIn: day(2, 1), CheckOut: ptr(day(2, 4)), Guests: 2, PaymentMethod: tariffs.PaymentPix})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.True(t, res.Items[0].Quote.MinStayViolation)
	assert.Equal(t, 5, res.Items[0].Quote.MinimumStay)
}

func TestSearchScenarioTwoPeriods(t *testing.T) {
	c := newCatalog()
	c.acc(t, "std-1", "Standard 1", accommodations.CategoryStandard, 2)
	c.period(t, "low", day(1, 1), day(3, 30), false, 1)
	c.period(t, "high", day(3, 31), day(6, 30), false, 1)
	c.rule(t, accommodations.CategoryStandard, "low", 2, tariffs.PaymentPix, "300")
	c.rule(t, accommodations.CategoryStandard, "high", 2, tariffs.PaymentPix, "500")

	res, err := (&Service{}).Search(context.Background(), c.sources(), Request{CheckIn: day(3, 29), CheckOut: ptr(day(4, 1)), Guests: 2, PaymentMethod: tariffs.PaymentPix})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	q := res.Items[0].Quote
	assert.Equal(t, "1100.00", q.Total.Fixed())
	assert.Equal(t, "366.67", q.PricePerNight.Fixed())
	assert.True(t, q.SpansMultiplePeriods)
}

func TestSearchScenarioCapacityFilter(t *testing.T) {
	c := lowSeasonCatalog(t, 1)
	res, err := (&Service{}).Search(context.Background(), c.sources(), Request{CheckIn: day(2, 1), CheckOut: ptr(day(2, 4)), Guests: 3, PaymentMethod: tariffs.PaymentPix})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Equal(t, 0, res.Candidates)
	assert.Empty(t, res.Notice)
}

func TestSearchScenarioMissingPaymentMethod(t *testing.T) {
	c := lowSeasonCatalog(t, 1)
	c.acc(t, "luxo-1", "Luxo 1", accommodations.CategoryLuxo, 2)
	c.rule(t, accommodations.CategoryLuxo, "low", 2, tariffs.PaymentCard, "450")
	c.rule(t, accommodations.CategoryLuxo, "low", 2, tariffs.PaymentPix, "420")

	res, err := (&Service{}).Search(context.Background(), c.sources(), Request{CheckIn: day(2, 1), CheckOut: ptr(day(2, 4)), Guests: 2, PaymentMethod: tariffs.PaymentCard})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, accommodations.AccommodationID("luxo-1"), res.Items[0].Accommodation.ID)
	assert.Equal(t, 1, res.Unpriceable)
	assert.Empty(t, res.Notice)
	require.Len(t, res.Items[0].ByMethod, 2)
	assert.Equal(t, tariffs.PaymentPix, res.Items[0].ByMethod[0].PaymentMethod)
	assert.Equal(t, "420.00", res.Items[0].ByMethod[0].PricePerNight.Fixed())
}

func TestSearchOrdersByNightlyPriceAndIsIdempotent(t *testing.T) {
	c := newCatalog()
	c.period(t, "low", day(1, 1), day(3, 31), false, 1)
	c.acc(t, "master-1", "Master", accommodations.CategoryMaster, 4)
	c.acc(t, "std-b", "Standard B", accommodations.CategoryStandard, 2)
	c.acc(t, "std-a", "Standard A", accommodations.CategoryStandard, 2)
	c.acc(t, "luxo-1", "Luxo", accommodations.CategoryLuxo, 3)
	c.rule(t, accommodations.CategoryMaster, "low", 2, tariffs.PaymentPix, "900")
	c.rule(t, accommodations.CategoryStandard, "low", 2, tariffs.PaymentPix, "300")
	c.rule(t, accommodations.CategoryLuxo, "low", 2, tariffs.PaymentPix, "450")

	svc := &Service{Concurrency: 2}
	req := Request{CheckIn: day(2, 1), CheckOut: ptr(day(2, 3)), Guests: 2, PaymentMethod: tariffs.PaymentPix}
	first, err := svc.Search(context.Background(), c.sources(), req)
	require.NoError(t, err)
	second, err := svc.Search(context.Background(), c.sources(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	ids := []accommodations.AccommodationID{}
	for i, item := range first.Items {
		ids = append(ids, item.Accommodation.ID)
		if i > 0 {
			assert.LessOrEqual(t, first.Items[i-1].Quote.PricePerNight.Cmp(item.Quote.PricePerNight), 0)
		}
	}
	assert.Equal(t, []accommodations.AccommodationID{"std-a", "std-b", "luxo-1", "master-1"}, ids)
}

func TestSearchWithoutCheckOutPricesCheckInNight(t *testing.T) {
	c := lowSeasonCatalog(t, 7)
	res, err := (&Service{}).Search(context.Background(), c.sources(), Request{CheckIn: day(2, 1), Guests: 2, PaymentMethod: tariffs.PaymentPix})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	q := res.Items[0].Quote
	assert.Nil(t, q.Total)
	assert.Nil(t, q.Nights)
	assert.False(t, q.MinStayViolation)
	assert.Equal(t, 7, q.MinimumStay)
}

func TestSearchExcludesBlockedAndHeld(t *testing.T) {
	c := lowSeasonCatalog(t, 1)
	blocked := c.acc(t, "std-2", "Standard 2", accommodations.CategoryStandard, 2)
	blocked.BlockFor("renovation", "", nil, nil, day(1, 1))
	c.acc(t, "std-3", "Standard 3", accommodations.CategoryStandard, 2)
	c.holds["std-3"] = true

	res, err := (&Service{}).Search(context.Background(), c.sources(), Request{CheckIn: day(2, 1), CheckOut: ptr(day(2, 2)), Guests: 2, PaymentMethod: tariffs.PaymentPix})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, accommodations.AccommodationID("std-1"), res.Items[0].Accommodation.ID)
	assert.Equal(t, 1, res.Held)
}

func TestSearchNoticeWhenNothingPriceable(t *testing.T) {
	c := lowSeasonCatalog(t, 1)
	res, err := (&Service{}).Search(context.Background(), c.sources(), Request{CheckIn: day(5, 1), CheckOut: ptr(day(5, 3)), Guests: 2, PaymentMethod: tariffs.PaymentPix})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.NotNil(t, res.Items)
	assert.Equal(t, 1, res.Unpriceable)
	assert.Equal(t, NoTariffNotice, res.Notice)
}

func TestSearchRejectsInvalidRequestBeforeReadingCatalog(t *testing.T) {
	c := lowSeasonCatalog(t, 1)
	for name, req := range map[string]Request{
		"checkout before checkin": {CheckIn: day(2, 4), CheckOut: ptr(day(2, 1)), Guests: 2, PaymentMethod: tariffs.PaymentPix},
		"same day":                {CheckIn: day(2, 1), CheckOut: ptr(day(2, 1)), Guests: 2, PaymentMethod: tariffs.PaymentPix},
		"no guests":               {CheckIn: day(2, 1), Guests: 0, PaymentMethod: tariffs.PaymentPix},
		"bad method":              {CheckIn: day(2, 1), Guests: 1, PaymentMethod: "BOLETO"},
		"stay too long":           {CheckIn: day(2, 1), CheckOut: ptr(day(2, 1).AddDate(0, 0, MaxStayNights+1)), Guests: 2, PaymentMethod: tariffs.PaymentPix},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := (&Service{}).Search(context.Background(), c.sources(), req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
	assert.Equal(t, int32(0), c.accs.calls.Load())
}

func TestRequestAcceptsLongestStay(t *testing.T) {
	req := Request{CheckIn: day(2, 1), CheckOut: ptr(day(2, 1).AddDate(0, 0, MaxStayNights)), Guests: 2, PaymentMethod: tariffs.PaymentPix}
	assert.NoError(t, req.Validate())

	far := time.Date(2400, 1, 1, 0, 0, 0, 0, time.UTC)
	req.CheckOut = &far
	assert.ErrorIs(t, req.Validate(), ErrInvalidRequest)
}

func TestSearchPropagatesDataAccessErrors(t *testing.T) {
	boom := errors.New("connection refused")

	c := lowSeasonCatalog(t, 1)
	c.accs.err = boom
	_, err := (&Service{}).Search(context.Background(), c.sources(), Request{CheckIn: day(2, 1), Guests: 1, PaymentMethod: tariffs.PaymentPix})
	var dae *DataAccessError
	require.ErrorAs(t, err, &dae)
	assert.Equal(t, "list accommodations", dae.Op)
	assert.ErrorIs(t, err, boom)

	c = lowSeasonCatalog(t, 1)
	c.rules.err = boom
	_, err = (&Service{}).Search(context.Background(), c.sources(), Request{CheckIn: day(2, 1), Guests: 1, PaymentMethod: tariffs.PaymentPix})
	require.ErrorAs(t, err, &dae)
	assert.Equal(t, "list price rules", dae.Op)

	c = lowSeasonCatalog(t, 1)
	_, err = (&Service{}).Search(context.Background(), Sources{Accommodations: c.accs, Periods: c.periods, PriceRules: c.rules, Holds: failingHolds{err: boom}}, Request{CheckIn: day(2, 1), Guests: 1, PaymentMethod: tariffs.PaymentPix})
	require.ErrorAs(t, err, &dae)
	assert.ErrorIs(t, err, boom)
}

type failingHolds struct{ err error }

func (f failingHolds) HasActiveHold(ctx context.Context, id accommodations.AccommodationID) (bool, error) {
	return false, f.err
}
