package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"innkeep/internal/domain/accommodations"
	"innkeep/internal/domain/maintenance"
	"innkeep/internal/domain/pricing"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/tariffs"
)

var (
	ErrInvalidRequest = errors.New("search: invalid request")
	ErrSourcesMissing = errors.New("search: catalog sources not configured")
)

// NoTariffNotice is returned when candidates existed but none could be priced.
const NoTariffNotice = "no tariff configured for the requested stay"

const DefaultConcurrency = 8

// MaxStayNights bounds the stays a search will price.
const MaxStayNights = 365

// DataAccessError wraps a failing catalog read. It always reaches the caller.
type DataAccessError struct {
	Op  string
	Err error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("search: %s: %v", e.Op, e.Err)
}

func (e *DataAccessError) Unwrap() error {
	return e.Err
}

type Request struct {
	CheckIn       time.Time
	CheckOut      *time.Time
	Guests        int
	PaymentMethod tariffs.PaymentMethod
}

func (r Request) Validate() error {
	if r.CheckIn.IsZero() {
		return fmt.Errorf("%w: check-in date is required", ErrInvalidRequest)
	}
	if r.Guests < 1 {
		return fmt.Errorf("%w: guests must be at least 1", ErrInvalidRequest)
	}
	if !r.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unknown payment method %q", ErrInvalidRequest, r.PaymentMethod)
	}
	if r.CheckOut == nil {
		return nil
	}
	if !daterange.Day(*r.CheckOut).After(daterange.Day(r.CheckIn)) {
		return fmt.Errorf("%w: check-out must be after check-in", ErrInvalidRequest)
	}
	if n := (daterange.DateRange{CheckIn: r.CheckIn, CheckOut: *r.CheckOut}).Nights(); n > MaxStayNights {
		return fmt.Errorf("%w: stay of %d nights exceeds %d", ErrInvalidRequest, n, MaxStayNights)
	}
	return nil
}

// lastNight is the final day that needs a tariff period.
func (r Request) lastNight() time.Time {
	if r.CheckOut == nil {
		return daterange.Day(r.CheckIn)
	}
	return daterange.Day(*r.CheckOut).AddDate(0, 0, -1)
}

// Sources are the catalog reads one search needs. Holds may be nil when no
// maintenance feed is wired.
type Sources struct {
	Accommodations accommodations.Repository
	Periods        tariffs.PeriodRepository
	PriceRules     tariffs.PriceRuleRepository
	Holds          maintenance.HoldProvider
}

type Item struct {
	Accommodation *accommodations.Accommodation
	Quote         pricing.StayQuote
	ByMethod      []pricing.MethodQuote
}

type Result struct {
	Items       []Item
	Candidates  int
	Held        int
	Unpriceable int
	Notice      string
}

type Service struct {
	Concurrency int
	Logger      *slog.Logger
}

type outcome int

const (
	outcomePriced outcome = iota
	outcomeHeld
	outcomeUnpriceable
)

// Search returns the priceable, available accommodations for req ordered by
// nightly price. An empty result is not an error.
func (s *Service) Search(ctx context.Context, src Sources, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	if src.Accommodations == nil || src.Periods == nil || src.PriceRules == nil {
		return Result{}, ErrSourcesMissing
	}
	req.CheckIn = daterange.Day(req.CheckIn)
	if req.CheckOut != nil {
		out := daterange.Day(*req.CheckOut)
		req.CheckOut = &out
	}

	listed, err := src.Accommodations.List(ctx, accommodations.Filter{MinCapacity: req.Guests, ExcludeBlocked: true})
	if err != nil {
		return Result{}, &DataAccessError{Op: "list accommodations", Err: err}
	}
	filter := accommodations.Filter{MinCapacity: req.Guests, ExcludeBlocked: true}
	candidates := make([]*accommodations.Accommodation, 0, len(listed))
	for _, acc := range listed {
		if filter.Matches(acc) {
			candidates = append(candidates, acc)
		}
	}
	res := Result{Items: []Item{}, Candidates: len(candidates)}
	if len(candidates) == 0 {
		return res, nil
	}

	snapshot, err := loadSnapshot(ctx, src, req)
	if err != nil {
		return Result{}, err
	}
	engine := pricing.NewEngine(snapshot)
	stay := pricing.Stay{CheckIn: req.CheckIn, CheckOut: req.CheckOut, Guests: req.Guests}

	items := make([]*Item, len(candidates))
	outcomes := make([]outcome, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency())
	for i, acc := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if src.Holds != nil {
				held, err := src.Holds.HasActiveHold(gctx, acc.ID)
				if err != nil {
					return &DataAccessError{Op: "check maintenance hold", Err: err}
				}
				if held {
					outcomes[i] = outcomeHeld
					return nil
				}
			}
			item, err := evaluate(engine, acc, stay, req.PaymentMethod)
			if errors.Is(err, pricing.ErrUnpriceable) {
				outcomes[i] = outcomeUnpriceable
				s.logger().DebugContext(gctx, "accommodation excluded", "accommodation_id", acc.ID, "reason", err)
				return nil
			}
			if err != nil {
				return &DataAccessError{Op: "price accommodation " + string(acc.ID), Err: err}
			}
			items[i] = &item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	for i, item := range items {
		switch outcomes[i] {
		case outcomeHeld:
			res.Held++
		case outcomeUnpriceable:
			res.Unpriceable++
		default:
			res.Items = append(res.Items, *item)
		}
	}
	sortItems(res.Items)
	if len(res.Items) == 0 && res.Unpriceable > 0 {
		res.Notice = NoTariffNotice
	}
	return res, nil
}

func loadSnapshot(ctx context.Context, src Sources, req Request) (*tariffs.Snapshot, error) {
	periods, err := src.Periods.Overlapping(ctx, req.CheckIn, req.lastNight())
	if err != nil {
		return nil, &DataAccessError{Op: "list tariff periods", Err: err}
	}
	if len(periods) == 0 {
		return tariffs.NewSnapshot(nil, nil), nil
	}
	ids := make([]tariffs.PeriodID, 0, len(periods))
	for _, p := range periods {
		ids = append(ids, p.ID)
	}
	rules, err := src.PriceRules.List(ctx, tariffs.RuleFilter{PeriodIDs: ids})
	if err != nil {
		return nil, &DataAccessError{Op: "list price rules", Err: err}
	}
	return tariffs.NewSnapshot(periods, rules), nil
}

func evaluate(engine *pricing.Engine, acc *accommodations.Accommodation, stay pricing.Stay, method tariffs.PaymentMethod) (Item, error) {
	quote, err := engine.Quote(acc, stay, method)
	if err != nil {
		return Item{}, err
	}
	item := Item{Accommodation: acc.Clone(), Quote: quote}
	for _, other := range tariffs.PaymentMethods() {
		if other == method {
			item.ByMethod = append(item.ByMethod, quote.MethodQuote())
			continue
		}
		alt, err := engine.Quote(acc, stay, other)
		if errors.Is(err, pricing.ErrUnpriceable) {
			continue
		}
		if err != nil {
			return Item{}, err
		}
		item.ByMethod = append(item.ByMethod, alt.MethodQuote())
	}
	return item, nil
}

func sortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if c := items[i].Quote.PricePerNight.Cmp(items[j].Quote.PricePerNight); c != 0 {
			return c < 0
		}
		if items[i].Accommodation.Name != items[j].Accommodation.Name {
			return items[i].Accommodation.Name < items[j].Accommodation.Name
		}
		return items[i].Accommodation.ID < items[j].Accommodation.ID
	})
}

func (s *Service) concurrency() int {
	if s == nil || s.Concurrency < 1 {
		return DefaultConcurrency
	}
	return s.Concurrency
}

func (s *Service) logger() *slog.Logger {
	if s == nil || s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
