package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"innkeep/internal/app/outbox"
	"innkeep/internal/domain/shared/daterange"
)

// Base carries what every catalog command handler needs besides the unit of work.
type Base struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
	Clock   func() time.Time
}

func (b Base) now() time.Time {
	if b.Clock != nil {
		return b.Clock().UTC()
	}
	return time.Now().UTC()
}

func (b Base) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.Default()
	}
	return b.Logger
}

// record moves pending aggregate events into the outbox.
func (b Base) record(ctx context.Context, aggregates ...outbox.Recorder) error {
	if b.Outbox == nil {
		for _, agg := range aggregates {
			agg.ClearEvents()
		}
		return nil
	}
	return outbox.Drain(ctx, b.Outbox, b.Encoder, aggregates...)
}

var ErrInvalidDate = errors.New("catalog: invalid date")

func parseDay(raw string) (time.Time, error) {
	d, err := daterange.ParseDay(strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return d, nil
}

func optionalDay(raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	d, err := parseDay(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
