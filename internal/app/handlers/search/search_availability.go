package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"innkeep/internal/app/commands"
	"innkeep/internal/app/dto"
	"innkeep/internal/app/handlers/support"
	"innkeep/internal/app/middleware"
	"innkeep/internal/app/policies"
	"innkeep/internal/app/queries"
	svcsearch "innkeep/internal/app/services/search"
	"innkeep/internal/app/uow"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/tariffs"
)

const SearchAvailabilityKey = "availability.search"

// SearchAvailabilityQuery carries raw request values; they are parsed into
// closed types before the catalog is read.
type SearchAvailabilityQuery struct {
	CheckIn       string `validate:"required,max=32"`
	CheckOut      string `validate:"max=32"`
	Guests        int
	PaymentMethod string `validate:"required,max=16"`
}

func (q SearchAvailabilityQuery) Key() string { return SearchAvailabilityKey }

func (q SearchAvailabilityQuery) CacheKey() string {
	return strings.Join([]string{
		strings.TrimSpace(q.CheckIn),
		strings.TrimSpace(q.CheckOut),
		fmt.Sprint(q.Guests),
		strings.ToUpper(strings.TrimSpace(q.PaymentMethod)),
	}, "|")
}

func (q SearchAvailabilityQuery) ResultPrototype() any { return &dto.AvailabilitySearch{} }

// Request converts the raw query into a search request.
func (q SearchAvailabilityQuery) Request() (svcsearch.Request, error) {
	checkIn, err := daterange.ParseDay(strings.TrimSpace(q.CheckIn))
	if err != nil {
		return svcsearch.Request{}, fmt.Errorf("%w: check_in %q is not a date", svcsearch.ErrInvalidRequest, q.CheckIn)
	}
	req := svcsearch.Request{CheckIn: checkIn, Guests: q.Guests}
	if raw := strings.TrimSpace(q.CheckOut); raw != "" {
		checkOut, err := daterange.ParseDay(raw)
		if err != nil {
			return svcsearch.Request{}, fmt.Errorf("%w: check_out %q is not a date", svcsearch.ErrInvalidRequest, q.CheckOut)
		}
		req.CheckOut = &checkOut
	}
	method, err := tariffs.ParsePaymentMethod(q.PaymentMethod)
	if err != nil {
		return svcsearch.Request{}, fmt.Errorf("%w: %v", svcsearch.ErrInvalidRequest, err)
	}
	req.PaymentMethod = method
	return req, req.Validate()
}

type SearchAvailabilityHandler struct {
	UoWFactory uow.UoWFactory
	Service    *svcsearch.Service
	Logger     *slog.Logger
}

func (h *SearchAvailabilityHandler) Handle(ctx context.Context, q SearchAvailabilityQuery) (dto.AvailabilitySearch, error) {
	req, err := q.Request()
	if err != nil {
		return dto.AvailabilitySearch{}, err
	}
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.AvailabilitySearch{}, &svcsearch.DataAccessError{Op: "begin unit of work", Err: err}
	}
	defer cleanup()

	svc := h.Service
	if svc == nil {
		svc = &svcsearch.Service{Logger: h.Logger}
	}
	res, err := svc.Search(ctx, svcsearch.Sources{
		Accommodations: unit.Accommodations(),
		Periods:        unit.Periods(),
		PriceRules:     unit.PriceRules(),
		Holds:          unit.Holds(),
	}, req)
	if err != nil {
		return dto.AvailabilitySearch{}, err
	}
	return dto.MapAvailability(res, req), nil
}

// JournalQuotes records the quotes of every answered availability search in
// journal. It belongs above the query cache so cached answers are recorded
// too. Journal failures are logged and never fail the search.
func JournalQuotes(journal policies.QuoteJournal, logger *slog.Logger) middleware.QueryMiddleware {
	if journal == nil {
		panic("search: quote journal required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return middleware.AfterAnswer(func(ctx context.Context, q queries.Query, res any) {
		sq, ok := q.(SearchAvailabilityQuery)
		if !ok {
			return
		}
		out, err := commands.As[dto.AvailabilitySearch](res)
		if err != nil {
			logger.WarnContext(ctx, "quote journal skipped", "error", err)
			return
		}
		req, err := sq.Request()
		if err != nil {
			return
		}
		recordQuotes(ctx, journal, logger, req, out)
	})
}

func recordQuotes(ctx context.Context, journal policies.QuoteJournal, logger *slog.Logger, req svcsearch.Request, out dto.AvailabilitySearch) {
	if len(out.Items) == 0 {
		return
	}
	searchID := uuid.NewString()
	now := time.Now().UTC()
	entries := make([]policies.QuoteEntry, 0, len(out.Items))
	for _, item := range out.Items {
		entries = append(entries, policies.QuoteEntry{
			SearchID:        searchID,
			AccommodationID: item.AccommodationID,
			CheckIn:         req.CheckIn,
			CheckOut:        req.CheckOut,
			Guests:          req.Guests,
			PaymentMethod:   item.PaymentMethod,
			Currency:        item.Currency,
			PricePerNight:   item.PricePerNight,
			Total:           item.TotalPrice,
			MinStayViolated: item.MinStayViolation,
			RecordedAt:      now,
		})
	}
	if err := journal.Record(ctx, entries); err != nil {
		logger.WarnContext(ctx, "quote journal write failed", "error", err, "entries", len(entries))
	}
}
