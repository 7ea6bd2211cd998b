package middleware

import (
	"context"

	"innkeep/internal/app/commands"
	"innkeep/internal/app/queries"
)

// CommandMiddleware decorates the admin command bus.
type CommandMiddleware func(next commands.Bus) commands.Bus

// QueryMiddleware decorates the read side.
type QueryMiddleware func(next queries.Bus) queries.Bus

// ChainCommands applies mws around base, outermost first. Nil entries are
// skipped so optional stages can be left out inline.
func ChainCommands(base commands.Bus, mws ...CommandMiddleware) commands.Bus {
	return chain(base, mws)
}

// ChainQueries is ChainCommands for the query bus.
func ChainQueries(base queries.Bus, mws ...QueryMiddleware) queries.Bus {
	return chain(base, mws)
}

func chain[B any, M ~func(B) B](base B, mws []M) B {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			base = mws[i](base)
		}
	}
	return base
}

type commandFunc func(ctx context.Context, cmd commands.Command) (any, error)

func (f commandFunc) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	return f(ctx, cmd)
}

type queryFunc func(ctx context.Context, query queries.Query) (any, error)

func (f queryFunc) Ask(ctx context.Context, q queries.Query) (any, error) {
	return f(ctx, q)
}

// afterSuccess runs hook once next has succeeded. Hook failures never change
// the command result.
func afterSuccess(hook func(ctx context.Context, cmd commands.Command)) CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := next.Dispatch(ctx, cmd)
			if err != nil {
				return nil, err
			}
			hook(ctx, cmd)
			return res, nil
		})
	}
}

// AfterAnswer runs hook with every successful query result, whether it came
// from the handler or a cache below it.
func AfterAnswer(hook func(ctx context.Context, q queries.Query, res any)) QueryMiddleware {
	return func(next queries.Bus) queries.Bus {
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			res, err := next.Ask(ctx, q)
			if err != nil {
				return nil, err
			}
			hook(ctx, q, res)
			return res, nil
		})
	}
}
