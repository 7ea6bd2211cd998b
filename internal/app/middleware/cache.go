package middleware

import (
	"context"
	"log/slog"
	"time"

	"innkeep/internal/app/commands"
	"innkeep/internal/app/queries"
)

// CacheableQuery opts a query into the read-through cache.
type CacheableQuery interface {
	queries.Query
	CacheKey() string
	ResultPrototype() any
}

// QueryCacheStore keeps encoded query results under a generation. Invalidate
// starts a new generation. A result computed while generation g was current
// must be stored under g, so a write that races an invalidation lands in a
// generation nobody reads anymore.
type QueryCacheStore interface {
	Generation(ctx context.Context) (int64, error)
	Get(ctx context.Context, gen int64, key string) ([]byte, bool, error)
	Set(ctx context.Context, gen int64, key string, payload []byte, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

// QueryCache serves cacheable queries from store. Cache failures degrade to a
// direct read and are only logged.
func QueryCache(store QueryCacheStore, ttl time.Duration, codec ResultCodec, logger *slog.Logger) QueryMiddleware {
	if store == nil {
		panic("middleware: cache store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next queries.Bus) queries.Bus {
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			cq, ok := q.(CacheableQuery)
			if !ok || cq.CacheKey() == "" {
				return next.Ask(ctx, q)
			}
			key := q.Key() + ":" + cq.CacheKey()
			gen, err := store.Generation(ctx)
			if err != nil {
				logger.WarnContext(ctx, "query cache generation read failed", "key", key, "error", err)
				return next.Ask(ctx, q)
			}
			payload, hit, err := store.Get(ctx, gen, key)
			if err != nil {
				logger.WarnContext(ctx, "query cache read failed", "key", key, "error", err)
			}
			if hit {
				proto := cq.ResultPrototype()
				if proto != nil {
					if err := codec.Decode(payload, proto); err == nil {
						return normalizePrototype(proto), nil
					}
				}
			}
			res, err := next.Ask(ctx, q)
			if err != nil {
				return nil, err
			}
			if encoded, encErr := codec.Encode(res); encErr == nil {
				if setErr := store.Set(ctx, gen, key, encoded, ttl); setErr != nil {
					logger.WarnContext(ctx, "query cache write failed", "key", key, "error", setErr)
				}
			}
			return res, nil
		})
	}
}

// CacheInvalidation retires every cached search and catalog read after a
// command commits.
func CacheInvalidation(store QueryCacheStore, logger *slog.Logger) CommandMiddleware {
	if store == nil {
		panic("middleware: cache store required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return afterSuccess(func(ctx context.Context, cmd commands.Command) {
		if err := store.Invalidate(ctx); err != nil {
			logger.WarnContext(ctx, "query cache invalidation failed", "command", cmd.Key(), "error", err)
		}
	})
}
