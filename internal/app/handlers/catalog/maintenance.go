package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"innkeep/internal/app/dto"
	"innkeep/internal/app/uow"
	domainacc "innkeep/internal/domain/accommodations"
	domainmaint "innkeep/internal/domain/maintenance"
)

const (
	OpenHoldKey  = "maintenance.hold.open"
	CloseHoldKey = "maintenance.hold.close"
)

// ErrHoldTarget is returned when a close command names neither a hold nor a reference.
var ErrHoldTarget = errors.New("catalog: hold id or reference is required")

type OpenHoldCommand struct {
	AccommodationID string `validate:"required"`
	Reason          string `validate:"max=200"`
	Reference       string `validate:"max=64"`
	IdemKey         string `validate:"-"`
}

func (c OpenHoldCommand) Key() string            { return OpenHoldKey }
func (c OpenHoldCommand) IdempotencyKey() string { return c.IdemKey }
func (c OpenHoldCommand) ResultPrototype() any   { return &dto.HoldView{} }

// AllowSystem lets the maintenance feed consumer open holds.
func (c OpenHoldCommand) AllowSystem() bool { return true }

type OpenHoldHandler struct {
	Base
	IDGenerator func() string
}

func (h *OpenHoldHandler) Handle(ctx context.Context, cmd OpenHoldCommand) (*dto.HoldView, error) {
	unit, err := uow.Require(ctx)
	if err != nil {
		return nil, err
	}
	accID := domainacc.AccommodationID(strings.TrimSpace(cmd.AccommodationID))
	if _, err := unit.Accommodations().ByID(ctx, accID); err != nil {
		return nil, err
	}
	if ref := strings.TrimSpace(cmd.Reference); ref != "" {
		existing, err := unit.Holds().ByReference(ctx, ref)
		switch {
		case err == nil && existing.Active():
			view := dto.MapHold(existing)
			return &view, nil
		case err != nil && !errors.Is(err, domainmaint.ErrHoldNotFound):
			return nil, err
		}
	}
	idGen := h.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}
	hold, err := domainmaint.OpenHold(domainmaint.OpenParams{
		ID:              domainmaint.HoldID(idGen()),
		AccommodationID: accID,
		Reason:          cmd.Reason,
		Reference:       cmd.Reference,
		Now:             h.now(),
	})
	if err != nil {
		return nil, err
	}
	if err := unit.Holds().Save(ctx, hold); err != nil {
		return nil, err
	}
	if err := h.record(ctx, hold); err != nil {
		return nil, err
	}
	h.logger().InfoContext(ctx, "maintenance hold opened", "hold_id", hold.ID, "accommodation_id", hold.AccommodationID, "reference", hold.Reference)
	view := dto.MapHold(hold)
	return &view, nil
}

type CloseHoldCommand struct {
	HoldID    string `validate:"required_without=Reference"`
	Reference string `validate:"required_without=HoldID"`
	IdemKey   string `validate:"-"`
}

func (c CloseHoldCommand) Key() string            { return CloseHoldKey }
func (c CloseHoldCommand) IdempotencyKey() string { return c.IdemKey }
func (c CloseHoldCommand) ResultPrototype() any   { return &dto.HoldView{} }
func (c CloseHoldCommand) AllowSystem() bool      { return true }

type CloseHoldHandler struct {
	Base
}

func (h *CloseHoldHandler) Handle(ctx context.Context, cmd CloseHoldCommand) (*dto.HoldView, error) {
	unit, err := uow.Require(ctx)
	if err != nil {
		return nil, err
	}
	var hold *domainmaint.Hold
	switch {
	case strings.TrimSpace(cmd.HoldID) != "":
		hold, err = unit.Holds().ByID(ctx, domainmaint.HoldID(strings.TrimSpace(cmd.HoldID)))
	case strings.TrimSpace(cmd.Reference) != "":
		hold, err = unit.Holds().ByReference(ctx, strings.TrimSpace(cmd.Reference))
	default:
		return nil, ErrHoldTarget
	}
	if err != nil {
		return nil, err
	}
	if err := hold.Close(h.now()); err != nil {
		return nil, err
	}
	if err := unit.Holds().Save(ctx, hold); err != nil {
		return nil, err
	}
	if err := h.record(ctx, hold); err != nil {
		return nil, err
	}
	h.logger().InfoContext(ctx, "maintenance hold closed", "hold_id", hold.ID, "accommodation_id", hold.AccommodationID)
	view := dto.MapHold(hold)
	return &view, nil
}
