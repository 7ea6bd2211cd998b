package middleware

import (
	"context"
	"log/slog"

	"innkeep/internal/app/commands"
)

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// Authorization lets a command through only when the principal in ctx may
// run it. Denials are logged with the command key.
func Authorization(a Authorizer, logger *slog.Logger) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := a.Authorize(ctx, cmd); err != nil {
				logger.WarnContext(ctx, "command denied", "command", cmd.Key(), "error", err)
				return nil, err
			}
			return next.Dispatch(ctx, cmd)
		})
	}
}
