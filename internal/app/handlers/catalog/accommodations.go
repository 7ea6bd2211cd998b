package catalog

import (
	"context"
	"errors"
	"strings"

	"innkeep/internal/app/dto"
	"innkeep/internal/app/uow"
	domainacc "innkeep/internal/domain/accommodations"
	"innkeep/internal/domain/shared/daterange"
)

const (
	UpsertAccommodationKey  = "catalog.accommodation.upsert"
	BlockAccommodationKey   = "catalog.accommodation.block"
	UnblockAccommodationKey = "catalog.accommodation.unblock"
)

type UpsertAccommodationCommand struct {
	ID       string `validate:"required,max=64"`
	Name     string `validate:"required,max=120"`
	Category string `validate:"required"`
	Capacity int    `validate:"min=1,max=64"`
	IdemKey  string `validate:"-"`
}

func (c UpsertAccommodationCommand) Key() string            { return UpsertAccommodationKey }
func (c UpsertAccommodationCommand) IdempotencyKey() string { return c.IdemKey }
func (c UpsertAccommodationCommand) ResultPrototype() any   { return &dto.AccommodationView{} }

type UpsertAccommodationHandler struct {
	Base
}

func (h *UpsertAccommodationHandler) Handle(ctx context.Context, cmd UpsertAccommodationCommand) (*dto.AccommodationView, error) {
	unit, err := uow.Require(ctx)
	if err != nil {
		return nil, err
	}
	category, err := domainacc.ParseCategory(cmd.Category)
	if err != nil {
		return nil, err
	}
	id := domainacc.AccommodationID(strings.TrimSpace(cmd.ID))
	now := h.now()

	acc, err := unit.Accommodations().ByID(ctx, id)
	switch {
	case errors.Is(err, domainacc.ErrNotFound):
		acc, err = domainacc.New(domainacc.CreateParams{ID: id, Name: cmd.Name, Category: category, Capacity: cmd.Capacity, Now: now})
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := acc.Update(cmd.Name, category, cmd.Capacity, now); err != nil {
			return nil, err
		}
	}
	if err := unit.Accommodations().Save(ctx, acc); err != nil {
		return nil, err
	}
	if err := h.record(ctx, acc); err != nil {
		return nil, err
	}
	h.logger().InfoContext(ctx, "accommodation upserted", "accommodation_id", acc.ID, "category", acc.Category, "capacity", acc.Capacity)
	view := dto.MapAccommodation(acc)
	return &view, nil
}

type BlockAccommodationCommand struct {
	ID      string `validate:"required"`
	Reason  string `validate:"required,max=200"`
	Note    string `validate:"max=500"`
	From    string `validate:"omitempty,datetime=2006-01-02"`
	Until   string `validate:"omitempty,datetime=2006-01-02"`
	IdemKey string `validate:"-"`
}

func (c BlockAccommodationCommand) Key() string            { return BlockAccommodationKey }
func (c BlockAccommodationCommand) IdempotencyKey() string { return c.IdemKey }
func (c BlockAccommodationCommand) ResultPrototype() any   { return &dto.AccommodationView{} }

type BlockAccommodationHandler struct {
	Base
}

func (h *BlockAccommodationHandler) Handle(ctx context.Context, cmd BlockAccommodationCommand) (*dto.AccommodationView, error) {
	unit, err := uow.Require(ctx)
	if err != nil {
		return nil, err
	}
	from, err := optionalDay(cmd.From)
	if err != nil {
		return nil, err
	}
	until, err := optionalDay(cmd.Until)
	if err != nil {
		return nil, err
	}
	if from != nil && until != nil && until.Before(*from) {
		return nil, daterange.ErrInvalidRange
	}
	acc, err := unit.Accommodations().ByID(ctx, domainacc.AccommodationID(cmd.ID))
	if err != nil {
		return nil, err
	}
	acc.BlockFor(cmd.Reason, cmd.Note, from, until, h.now())
	if err := unit.Accommodations().Save(ctx, acc); err != nil {
		return nil, err
	}
	if err := h.record(ctx, acc); err != nil {
		return nil, err
	}
	h.logger().InfoContext(ctx, "accommodation blocked", "accommodation_id", acc.ID, "reason", acc.Block.Reason)
	view := dto.MapAccommodation(acc)
	return &view, nil
}

type UnblockAccommodationCommand struct {
	ID      string `validate:"required"`
	IdemKey string `validate:"-"`
}

func (c UnblockAccommodationCommand) Key() string            { return UnblockAccommodationKey }
func (c UnblockAccommodationCommand) IdempotencyKey() string { return c.IdemKey }
func (c UnblockAccommodationCommand) ResultPrototype() any   { return &dto.AccommodationView{} }

type UnblockAccommodationHandler struct {
	Base
}

func (h *UnblockAccommodationHandler) Handle(ctx context.Context, cmd UnblockAccommodationCommand) (*dto.AccommodationView, error) {
	unit, err := uow.Require(ctx)
	if err != nil {
		return nil, err
	}
	acc, err := unit.Accommodations().ByID(ctx, domainacc.AccommodationID(cmd.ID))
	if err != nil {
		return nil, err
	}
	acc.Unblock(h.now())
	if err := unit.Accommodations().Save(ctx, acc); err != nil {
		return nil, err
	}
	if err := h.record(ctx, acc); err != nil {
		return nil, err
	}
	view := dto.MapAccommodation(acc)
	return &view, nil
}
