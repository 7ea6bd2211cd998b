package middleware

import (
	"context"
	"log/slog"

	"innkeep/internal/app/commands"
	"innkeep/internal/app/outbox"
)

// OutboxFlush pushes the events a command recorded once its unit has
// committed. Records that fail to publish stay pending for the worker.
func OutboxFlush(box outbox.Outbox, logger *slog.Logger) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return afterSuccess(func(ctx context.Context, cmd commands.Command) {
		if err := box.Flush(ctx); err != nil {
			logger.WarnContext(ctx, "outbox flush failed", "command", cmd.Key(), "error", err)
		}
	})
}
