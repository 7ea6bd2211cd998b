package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"innkeep/internal/app/dto"
	"innkeep/internal/app/policies"
	"innkeep/internal/app/uow"
	domainacc "innkeep/internal/domain/accommodations"
	"innkeep/internal/domain/shared/money"
	domaintariffs "innkeep/internal/domain/tariffs"
)

const (
	ExportSnapshotKey = "catalog.snapshot.export"
	SnapshotVersion   = 1
)

var ErrSnapshotStoreMissing = errors.New("catalog: snapshot store not configured")

type ExportSnapshotCommand struct {
	ObjectKey string `validate:"omitempty,max=200"`
	IdemKey   string `validate:"-"`
}

func (c ExportSnapshotCommand) Key() string            { return ExportSnapshotKey }
func (c ExportSnapshotCommand) IdempotencyKey() string { return c.IdemKey }
func (c ExportSnapshotCommand) ResultPrototype() any   { return &dto.SnapshotExport{} }

// ExportSnapshotHandler serializes the whole catalog and uploads it.
type ExportSnapshotHandler struct {
	Base
	Store      policies.SnapshotStore
	DefaultKey string
}

func (h *ExportSnapshotHandler) Handle(ctx context.Context, cmd ExportSnapshotCommand) (*dto.SnapshotExport, error) {
	if h.Store == nil {
		return nil, ErrSnapshotStoreMissing
	}
	unit, err := uow.Require(ctx)
	if err != nil {
		return nil, err
	}
	now := h.now()
	snapshot, err := BuildSnapshot(ctx, unit, now)
	if err != nil {
		return nil, err
	}
	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, err
	}
	key := strings.TrimSpace(cmd.ObjectKey)
	if key == "" {
		key = h.DefaultKey
	}
	if key == "" {
		key = "catalog/" + now.Format("20060102T150405Z") + ".json"
	}
	if err := h.Store.Put(ctx, key, payload); err != nil {
		return nil, err
	}
	h.logger().InfoContext(ctx, "catalog snapshot exported", "key", key, "periods", len(snapshot.Periods), "price_rules", len(snapshot.PriceRules))
	return &dto.SnapshotExport{
		Key:            key,
		Accommodations: len(snapshot.Accommodations),
		Periods:        len(snapshot.Periods),
		PriceRules:     len(snapshot.PriceRules),
		ExportedAt:     now,
	}, nil
}

// BuildSnapshot reads the full catalog through unit.
func BuildSnapshot(ctx context.Context, unit uow.UnitOfWork, now time.Time) (dto.CatalogSnapshot, error) {
	accs, err := unit.Accommodations().List(ctx, domainacc.Filter{})
	if err != nil {
		return dto.CatalogSnapshot{}, err
	}
	periods, err := unit.Periods().List(ctx)
	if err != nil {
		return dto.CatalogSnapshot{}, err
	}
	rules, err := unit.PriceRules().List(ctx, domaintariffs.RuleFilter{})
	if err != nil {
		return dto.CatalogSnapshot{}, err
	}
	return dto.CatalogSnapshot{
		Version:        SnapshotVersion,
		ExportedAt:     now,
		Accommodations: dto.MapAccommodations(accs),
		Periods:        dto.MapPeriods(periods),
		PriceRules:     dto.MapPriceRules(rules),
	}, nil
}

// ImportSnapshot writes every entry of snapshot through unit, applying the
// same invariants as the admin commands. Events are discarded.
func ImportSnapshot(ctx context.Context, unit uow.UnitOfWork, snapshot dto.CatalogSnapshot, now time.Time) error {
	if snapshot.Version > SnapshotVersion {
		return fmt.Errorf("catalog: unsupported snapshot version %d", snapshot.Version)
	}
	for _, v := range snapshot.Accommodations {
		acc, err := accommodationFromView(v, now)
		if err != nil {
			return fmt.Errorf("accommodation %s: %w", v.ID, err)
		}
		if err := unit.Accommodations().Save(ctx, acc); err != nil {
			return err
		}
	}
	imported := make([]*domaintariffs.Period, 0, len(snapshot.Periods))
	for _, v := range snapshot.Periods {
		p, err := periodFromView(v, now)
		if err != nil {
			return fmt.Errorf("period %s: %w", v.ID, err)
		}
		if err := domaintariffs.CheckOverlap(p, imported); err != nil {
			return fmt.Errorf("period %s: %w", v.ID, err)
		}
		imported = append(imported, p)
		if err := unit.Periods().Save(ctx, p); err != nil {
			return err
		}
	}
	rules := make([]*domaintariffs.PriceRule, 0, len(snapshot.PriceRules))
	for _, v := range snapshot.PriceRules {
		r, err := ruleFromView(v, now)
		if err != nil {
			return fmt.Errorf("price rule %s: %w", v.ID, err)
		}
		if err := domaintariffs.CheckDuplicate(r, rules); err != nil {
			return fmt.Errorf("price rule %s: %w", v.ID, err)
		}
		rules = append(rules, r)
		if err := unit.PriceRules().Save(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func createdOr(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t.UTC()
}

func accommodationFromView(v dto.AccommodationView, now time.Time) (*domainacc.Accommodation, error) {
	category, err := domainacc.ParseCategory(v.Category)
	if err != nil {
		return nil, err
	}
	acc, err := domainacc.New(domainacc.CreateParams{ID: domainacc.AccommodationID(v.ID), Name: v.Name, Category: category, Capacity: v.Capacity, Now: createdOr(v.CreatedAt, now)})
	if err != nil {
		return nil, err
	}
	if v.Blocked {
		acc.BlockFor(v.BlockReason, v.BlockNote, v.BlockFrom, v.BlockUntil, now)
	}
	acc.ClearEvents()
	return acc, nil
}

func periodFromView(v dto.PeriodView, now time.Time) (*domaintariffs.Period, error) {
	start, err := parseDay(v.Start)
	if err != nil {
		return nil, err
	}
	end, err := parseDay(v.End)
	if err != nil {
		return nil, err
	}
	p, err := domaintariffs.NewPeriod(domaintariffs.PeriodParams{
		ID:      domaintariffs.PeriodID(v.ID),
		Name:    v.Name,
		Start:   start,
		End:     end,
		Holiday: v.Holiday,
		MinStay: v.MinStay,
		Now:     createdOr(v.CreatedAt, now),
	})
	if err != nil {
		return nil, err
	}
	p.ClearEvents()
	return p, nil
}

func ruleFromView(v dto.PriceRuleView, now time.Time) (*domaintariffs.PriceRule, error) {
	category, err := domainacc.ParseCategory(v.Category)
	if err != nil {
		return nil, err
	}
	method, err := domaintariffs.ParsePaymentMethod(v.PaymentMethod)
	if err != nil {
		return nil, err
	}
	currency := v.Currency
	if currency == "" {
		currency = money.DefaultCurrency
	}
	nightly, err := money.Parse(v.Nightly, currency)
	if err != nil {
		return nil, err
	}
	r, err := domaintariffs.NewPriceRule(domaintariffs.RuleParams{
		ID:                domaintariffs.PriceRuleID(v.ID),
		Category:          category,
		People:            v.People,
		PaymentMethod:     method,
		PeriodID:          domaintariffs.PeriodID(v.PeriodID),
		Nightly:           nightly,
		MinStay:           v.MinStay,
		IncludesBreakfast: v.IncludesBreakfast,
		Now:               createdOr(v.CreatedAt, now),
	})
	if err != nil {
		return nil, err
	}
	r.ClearEvents()
	return r, nil
}
