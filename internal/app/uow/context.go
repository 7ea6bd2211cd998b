package uow

import (
	"context"
	"errors"
)

var (
	ErrUnitOfWorkMissing = errors.New("uow: unit of work missing from context")
	// ErrConflict marks a commit lost to a concurrent writer; the command may
	// be retried on a fresh unit.
	ErrConflict = errors.New("uow: concurrent update")
)

type ctxKey struct{}

func ContextWithUnitOfWork(ctx context.Context, unit UnitOfWork) context.Context {
	return context.WithValue(ctx, ctxKey{}, unit)
}

// Bind returns ctx carrying unit, letting the unit attach its own session
// state first when it needs to.
func Bind(ctx context.Context, unit UnitOfWork) context.Context {
	if injector, ok := unit.(interface {
		InjectContext(context.Context) context.Context
	}); ok {
		ctx = injector.InjectContext(ctx)
	}
	return ContextWithUnitOfWork(ctx, unit)
}

func FromContext(ctx context.Context) (UnitOfWork, bool) {
	unit, ok := ctx.Value(ctxKey{}).(UnitOfWork)
	return unit, ok && unit != nil
}

// Require returns the unit bound to ctx or ErrUnitOfWorkMissing.
func Require(ctx context.Context) (UnitOfWork, error) {
	unit, ok := FromContext(ctx)
	if !ok {
		return nil, ErrUnitOfWorkMissing
	}
	return unit, nil
}
