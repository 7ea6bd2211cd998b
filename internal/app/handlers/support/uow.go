package support

import (
	"context"

	"innkeep/internal/app/uow"
)

// BeginReadOnlyUnit reuses the unit bound to ctx or opens a read-only one.
// The returned cleanup is nil when the unit belongs to the caller.
func BeginReadOnlyUnit(ctx context.Context, factory uow.UoWFactory) (uow.UnitOfWork, context.Context, func(), error) {
	return begin(ctx, factory, uow.TxOptions{ReadOnly: true})
}

// BeginUnit is BeginReadOnlyUnit for writes. When the unit was opened here the
// caller must Commit it; cleanup rolls back anything left uncommitted.
func BeginUnit(ctx context.Context, factory uow.UoWFactory) (uow.UnitOfWork, context.Context, func(), bool, error) {
	if unit, ok := uow.FromContext(ctx); ok {
		return unit, ctx, func() {}, false, nil
	}
	unit, execCtx, cleanup, err := begin(ctx, factory, uow.TxOptions{})
	return unit, execCtx, cleanup, true, err
}

func begin(ctx context.Context, factory uow.UoWFactory, opts uow.TxOptions) (uow.UnitOfWork, context.Context, func(), error) {
	if unit, ok := uow.FromContext(ctx); ok {
		return unit, ctx, func() {}, nil
	}
	if factory == nil {
		return nil, ctx, func() {}, uow.ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return nil, ctx, func() {}, err
	}
	execCtx := uow.Bind(ctx, unit)
	cleanup := func() {
		_ = unit.Rollback(execCtx)
	}
	return unit, execCtx, cleanup, nil
}
