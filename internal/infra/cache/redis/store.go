package redis

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"innkeep/internal/app/middleware"
)

const defaultPrefix = "innkeep:qc"

// QueryCache stores query results under a generation counter. Invalidate bumps
// the generation, so stale entries become unreachable and expire on their TTL.
type QueryCache struct {
	rdb    goredis.UniversalClient
	prefix string
}

func NewQueryCache(rdb goredis.UniversalClient, prefix string) *QueryCache {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &QueryCache{rdb: rdb, prefix: prefix}
}

// Connect opens a client and pings it with a short timeout.
func Connect(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Generation reads the current generation; an absent counter is zero.
func (c *QueryCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, c.generationKey()).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *QueryCache) Get(ctx context.Context, gen int64, key string) ([]byte, bool, error) {
	payload, err := c.rdb.Get(ctx, c.key(gen, key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (c *QueryCache) Set(ctx context.Context, gen int64, key string, payload []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, c.key(gen, key), payload, ttl).Err()
}

func (c *QueryCache) Invalidate(ctx context.Context) error {
	return c.rdb.Incr(ctx, c.generationKey()).Err()
}

func (c *QueryCache) key(gen int64, key string) string {
	sum := sha1.Sum([]byte(key))
	return fmt.Sprintf("%s:%d:%x", c.prefix, gen, sum[:])
}

func (c *QueryCache) generationKey() string {
	return c.prefix + ":gen"
}

var _ middleware.QueryCacheStore = (*QueryCache)(nil)
