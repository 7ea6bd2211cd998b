package middleware

import (
	"context"
	"errors"
	"log/slog"

	"innkeep/internal/app/commands"
	"innkeep/internal/app/uow"
)

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// DefaultConflictRetries is how many extra attempts a command gets after
// losing a commit to a concurrent writer.
const DefaultConflictRetries = 2

type TransactionOption func(*transactionConfig)

type transactionConfig struct {
	opts    TxOptionsProvider
	retries int
	logger  *slog.Logger
}

func WithTxOptions(p TxOptionsProvider) TransactionOption {
	return func(c *transactionConfig) { c.opts = p }
}

func WithConflictRetries(n int) TransactionOption {
	return func(c *transactionConfig) { c.retries = max(n, 0) }
}

func WithTransactionLogger(l *slog.Logger) TransactionOption {
	return func(c *transactionConfig) { c.logger = l }
}

// Transaction runs each command in its own unit of work and commits only when
// the handler succeeds. Attempts failing with uow.ErrConflict are replayed on
// a fresh unit. Commands dispatched inside an existing unit join it.
func Transaction(factory uow.UoWFactory, options ...TransactionOption) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	cfg := transactionConfig{retries: DefaultConflictRetries, logger: slog.Default()}
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if _, nested := uow.FromContext(ctx); nested {
				return next.Dispatch(ctx, cmd)
			}
			opts := uow.TxOptions{}
			if cfg.opts != nil {
				opts = cfg.opts(cmd)
			}
			for attempt := 0; ; attempt++ {
				res, err := runInUnit(ctx, factory, opts, next, cmd)
				if err == nil || !errors.Is(err, uow.ErrConflict) || attempt >= cfg.retries || ctx.Err() != nil {
					return res, err
				}
				cfg.logger.WarnContext(ctx, "retrying command after write conflict", "command", cmd.Key(), "attempt", attempt+1)
			}
		})
	}
}

func runInUnit(ctx context.Context, factory uow.UoWFactory, opts uow.TxOptions, next commands.Bus, cmd commands.Command) (any, error) {
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	execCtx := uow.Bind(ctx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}()
	res, err := next.Dispatch(execCtx, cmd)
	if err != nil {
		return nil, err
	}
	if err := unit.Commit(execCtx); err != nil {
		return nil, err
	}
	committed = true
	return res, nil
}
