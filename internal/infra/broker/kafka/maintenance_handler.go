package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/IBM/sarama"

	"innkeep/internal/app/commands"
	"innkeep/internal/app/dto"
	"innkeep/internal/app/handlers/catalog"
	domainmaint "innkeep/internal/domain/maintenance"
	"innkeep/internal/infra/security"
)

const (
	// MaintenanceTopic carries work orders from the maintenance system.
	MaintenanceTopic = "maintenance.events.v1"

	orderOpened = "maintenance.order.opened"
	orderClosed = "maintenance.order.closed"

	maintenanceConsumer = "maintenance-feed"
)

var ErrMalformedEvent = errors.New("kafka: malformed maintenance event")

// Deduper remembers processed event ids. Forget is called when applying an
// event fails so the broker's redelivery is not mistaken for a duplicate.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type maintenanceEnvelope struct {
	ID   string           `json:"id"`
	Type string           `json:"type"`
	Data maintenanceOrder `json:"data"`
}

type maintenanceOrder struct {
	OrderID         string `json:"order_id"`
	AccommodationID string `json:"accommodation_id"`
	Reason          string `json:"reason"`
}

// MaintenanceHandler turns maintenance work orders into hold commands.
type MaintenanceHandler struct {
	Bus    commands.Bus
	Inbox  Deduper
	Logger *slog.Logger
}

func (h *MaintenanceHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	env, err := decodeMaintenance(msg.Value)
	if err != nil {
		// Poison messages are logged and skipped so the partition keeps moving.
		h.logger().WarnContext(ctx, "maintenance event skipped", "offset", msg.Offset, "error", err)
		return nil
	}
	kind := strings.TrimSuffix(env.Type, ".v1")
	if kind != orderOpened && kind != orderClosed {
		return nil
	}
	if h.Inbox != nil {
		seen, err := h.Inbox.Seen(ctx, env.ID)
		if err != nil {
			return err
		}
		if seen {
			h.logger().DebugContext(ctx, "maintenance event already processed", "event_id", env.ID)
			return nil
		}
	}
	ctx = security.WithSystem(ctx, maintenanceConsumer)
	switch kind {
	case orderOpened:
		_, err = commands.Dispatch[catalog.OpenHoldCommand, *dto.HoldView](ctx, h.Bus, catalog.OpenHoldCommand{
			AccommodationID: env.Data.AccommodationID,
			Reason:          env.Data.Reason,
			Reference:       env.Data.OrderID,
			IdemKey:         env.ID,
		})
	case orderClosed:
		_, err = commands.Dispatch[catalog.CloseHoldCommand, *dto.HoldView](ctx, h.Bus, catalog.CloseHoldCommand{
			Reference: env.Data.OrderID,
			IdemKey:   env.ID,
		})
		if errors.Is(err, domainmaint.ErrHoldClosed) || errors.Is(err, domainmaint.ErrHoldNotFound) {
			h.logger().InfoContext(ctx, "maintenance close ignored", "order_id", env.Data.OrderID, "reason", err)
			err = nil
		}
	}
	if err != nil {
		if h.Inbox != nil {
			if ferr := h.Inbox.Forget(ctx, env.ID); ferr != nil {
				err = errors.Join(err, ferr)
			}
		}
		return fmt.Errorf("maintenance event %s: %w", env.ID, err)
	}
	return nil
}

func decodeMaintenance(raw []byte) (maintenanceEnvelope, error) {
	var env maintenanceEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if env.ID == "" || env.Type == "" || strings.TrimSpace(env.Data.OrderID) == "" {
		return env, ErrMalformedEvent
	}
	if strings.HasPrefix(env.Type, orderOpened) && strings.TrimSpace(env.Data.AccommodationID) == "" {
		return env, ErrMalformedEvent
	}
	return env, nil
}

func (h *MaintenanceHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

var _ MessageHandler = (*MaintenanceHandler)(nil)
