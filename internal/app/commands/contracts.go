package commands

import (
	"context"
	"errors"
)

// Command is a catalog write. Key names the handler, for example
// "catalog.period.upsert".
type Command interface {
	Key() string
}

type Handler[C Command, R any] interface {
	Handle(ctx context.Context, cmd C) (R, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc[C Command, R any] func(ctx context.Context, cmd C) (R, error)

func (f HandlerFunc[C, R]) Handle(ctx context.Context, cmd C) (R, error) { return f(ctx, cmd) }

// Bus is the untyped dispatch surface middleware wraps.
type Bus interface {
	Dispatch(ctx context.Context, cmd Command) (any, error)
}

var (
	ErrHandlerNotFound = errors.New("commands: handler not found")
	ErrInvalidCommand  = errors.New("commands: invalid command for handler")
	ErrResultType      = errors.New("commands: result type mismatch")
	ErrNilBus          = errors.New("commands: nil bus")
)

// Dispatch sends cmd and returns the result as R. Handlers return *R while
// idempotent replays decode into a fresh *R; both are accepted.
func Dispatch[C Command, R any](ctx context.Context, bus Bus, cmd C) (R, error) {
	var zero R
	if bus == nil {
		return zero, ErrNilBus
	}
	res, err := bus.Dispatch(ctx, cmd)
	if err != nil || res == nil {
		return zero, err
	}
	return As[R](res)
}

// As converts an untyped bus result to R.
func As[R any](res any) (R, error) {
	var zero R
	switch value := res.(type) {
	case R:
		return value, nil
	case *R:
		if value != nil {
			return *value, nil
		}
		return zero, nil
	}
	return zero, ErrResultType
}
