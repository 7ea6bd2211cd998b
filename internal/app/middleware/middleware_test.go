package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"innkeep/internal/app/commands"
	"innkeep/internal/app/queries"
	"innkeep/internal/app/uow"
)

type renameCommand struct {
	Name    string
	IdemKey string
}

func (c renameCommand) Key() string            { return "test.rename" }
func (c renameCommand) IdempotencyKey() string { return c.IdemKey }
func (c renameCommand) ResultPrototype() any   { return &renameResult{} }

type renameResult struct {
	Name  string `json:"name"`
	Calls int    `json:"calls"`
}

type memIdempotency struct {
	mu   sync.Mutex
	recs map[string]IdempotencyRecord
}

func (m *memIdempotency) Get(ctx context.Context, key string) (IdempotencyRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[key]
	return rec, ok, nil
}

func (m *memIdempotency) Save(ctx context.Context, rec IdempotencyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recs == nil {
		m.recs = map[string]IdempotencyRecord{}
	}
	m.recs[rec.Key] = rec
	return nil
}

func TestIdempotencyReplaysFirstResult(t *testing.T) {
	calls := 0
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler[renameCommand, renameResult](bus, "test.rename", commands.HandlerFunc[renameCommand, renameResult](
		func(ctx context.Context, cmd renameCommand) (renameResult, error) {
			calls++
			return renameResult{Name: cmd.Name, Calls: calls}, nil
		}))
	store := &memIdempotency{}
	wrapped := ChainCommands(bus, Idempotency(store, nil))

	first, err := commands.Dispatch[renameCommand, renameResult](context.Background(), wrapped, renameCommand{Name: "a", IdemKey: "k1"})
	require.NoError(t, err)
	second, err := commands.Dispatch[renameCommand, renameResult](context.Background(), wrapped, renameCommand{Name: "a", IdemKey: "k1"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	_, err = commands.Dispatch[renameCommand, renameResult](context.Background(), wrapped, renameCommand{Name: "c"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	rec, ok := store.recs["test.rename:k1"]
	require.True(t, ok)
	assert.NotEmpty(t, rec.Fingerprint)
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler[renameCommand, renameResult](bus, "test.rename", commands.HandlerFunc[renameCommand, renameResult](
		func(ctx context.Context, cmd renameCommand) (renameResult, error) {
			return renameResult{Name: cmd.Name}, nil
		}))
	wrapped := ChainCommands(bus, Idempotency(&memIdempotency{}, nil))

	_, err := wrapped.Dispatch(context.Background(), renameCommand{Name: "a", IdemKey: "k1"})
	require.NoError(t, err)
	_, err = wrapped.Dispatch(context.Background(), renameCommand{Name: "b", IdemKey: "k1"})
	assert.ErrorIs(t, err, ErrIdempotencyConflict)
}

func TestIdempotencyDoesNotStoreCancelledAttempts(t *testing.T) {
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler[renameCommand, renameResult](bus, "test.rename", commands.HandlerFunc[renameCommand, renameResult](
		func(ctx context.Context, cmd renameCommand) (renameResult, error) {
			return renameResult{}, context.DeadlineExceeded
		}))
	store := &memIdempotency{}
	wrapped := ChainCommands(bus, Idempotency(store, nil))

	_, err := wrapped.Dispatch(context.Background(), renameCommand{IdemKey: "k"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, store.recs)
}

func TestFingerprintDependsOnBody(t *testing.T) {
	a, err := Fingerprint(renameCommand{Name: "a"})
	require.NoError(t, err)
	again, err := Fingerprint(renameCommand{Name: "a"})
	require.NoError(t, err)
	b, err := Fingerprint(renameCommand{Name: "b"})
	require.NoError(t, err)
	assert.Equal(t, a, again)
	assert.NotEqual(t, a, b)
}

func TestIdempotencyReplaysFailure(t *testing.T) {
	boom := errors.New("period overlaps")
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler[renameCommand, renameResult](bus, "test.rename", commands.HandlerFunc[renameCommand, renameResult](
		func(ctx context.Context, cmd renameCommand) (renameResult, error) {
			return renameResult{}, boom
		}))
	wrapped := ChainCommands(bus, Idempotency(&memIdempotency{}, nil))

	_, err := wrapped.Dispatch(context.Background(), renameCommand{IdemKey: "k"})
	assert.ErrorIs(t, err, boom)
	_, err = wrapped.Dispatch(context.Background(), renameCommand{IdemKey: "k"})
	assert.ErrorIs(t, err, ErrReplayedFailure)
	assert.Contains(t, err.Error(), "period overlaps")
}

type recordingFactory struct {
	units []*recordingUnit
}

type recordingUnit struct {
	uow.UnitOfWork
	committed  bool
	rolledBack bool
}

func (u *recordingUnit) Commit(ctx context.Context) error {
	u.committed = true
	return nil
}

func (u *recordingUnit) Rollback(ctx context.Context) error {
	u.rolledBack = true
	return nil
}

func (f *recordingFactory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	u := &recordingUnit{}
	f.units = append(f.units, u)
	return u, nil
}

func TestTransactionCommitsOnSuccessAndRollsBackOnError(t *testing.T) {
	fail := false
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler[renameCommand, renameResult](bus, "test.rename", commands.HandlerFunc[renameCommand, renameResult](
		func(ctx context.Context, cmd renameCommand) (renameResult, error) {
			if _, ok := uow.FromContext(ctx); !ok {
				return renameResult{}, uow.ErrUnitOfWorkMissing
			}
			if fail {
				return renameResult{}, errors.New("boom")
			}
			return renameResult{Name: cmd.Name}, nil
		}))
	factory := &recordingFactory{}
	wrapped := ChainCommands(bus, Transaction(factory))

	_, err := wrapped.Dispatch(context.Background(), renameCommand{Name: "ok"})
	require.NoError(t, err)
	fail = true
	_, err = wrapped.Dispatch(context.Background(), renameCommand{Name: "bad"})
	require.Error(t, err)

	require.Len(t, factory.units, 2)
	assert.True(t, factory.units[0].committed)
	assert.False(t, factory.units[0].rolledBack)
	assert.False(t, factory.units[1].committed)
	assert.True(t, factory.units[1].rolledBack)
}

func TestTransactionRetriesWriteConflicts(t *testing.T) {
	attempts := 0
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler[renameCommand, renameResult](bus, "test.rename", commands.HandlerFunc[renameCommand, renameResult](
		func(ctx context.Context, cmd renameCommand) (renameResult, error) {
			attempts++
			if attempts < 3 {
				return renameResult{}, fmt.Errorf("save period: %w", uow.ErrConflict)
			}
			return renameResult{Name: cmd.Name, Calls: attempts}, nil
		}))
	factory := &recordingFactory{}
	wrapped := ChainCommands(bus, Transaction(factory))

	res, err := commands.Dispatch[renameCommand, renameResult](context.Background(), wrapped, renameCommand{Name: "x"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Calls)
	require.Len(t, factory.units, 3)
	assert.True(t, factory.units[0].rolledBack)
	assert.True(t, factory.units[2].committed)

	attempts = -10
	factory.units = nil
	_, err = ChainCommands(bus, Transaction(factory, WithConflictRetries(1))).Dispatch(context.Background(), renameCommand{Name: "y"})
	assert.ErrorIs(t, err, uow.ErrConflict)
	assert.Len(t, factory.units, 2)
}

type denyAll struct{ err error }

func (d denyAll) Authorize(ctx context.Context, message any) error { return d.err }

func TestAuthorizationStopsDeniedCommands(t *testing.T) {
	called := false
	bus := commands.NewInMemoryBus()
	bus.RegisterRaw("test.rename", func(ctx context.Context, cmd commands.Command) (any, error) {
		called = true
		return nil, nil
	})
	denied := errors.New("forbidden")

	_, err := ChainCommands(bus, Authorization(denyAll{err: denied}, nil)).Dispatch(context.Background(), renameCommand{})
	assert.ErrorIs(t, err, denied)
	assert.False(t, called)

	_, err = ChainCommands(bus, Authorization(denyAll{}, nil)).Dispatch(context.Background(), renameCommand{})
	require.NoError(t, err)
	assert.True(t, called)
}

type listQuery struct{ Filter string }

func (q listQuery) Key() string          { return "test.list" }
func (q listQuery) CacheKey() string     { return q.Filter }
func (q listQuery) ResultPrototype() any { return &[]string{} }

type memCache struct {
	mu          sync.Mutex
	entries     map[string][]byte
	invalidated int
}

func (m *memCache) slot(gen int64, key string) string {
	return fmt.Sprintf("%d/%s", gen, key)
}

func (m *memCache) Generation(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(m.invalidated), nil
}

func (m *memCache) Get(ctx context.Context, gen int64, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[m.slot(gen, key)]
	return v, ok, nil
}

func (m *memCache) Set(ctx context.Context, gen int64, key string, payload []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = map[string][]byte{}
	}
	m.entries[m.slot(gen, key)] = payload
	return nil
}

func (m *memCache) Invalidate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated++
	return nil
}

func TestQueryCacheServesRepeatedQueries(t *testing.T) {
	calls := 0
	qbus := queries.NewInMemoryBus()
	queries.RegisterHandler[listQuery, []string](qbus, "test.list", queries.HandlerFunc[listQuery, []string](
		func(ctx context.Context, q listQuery) ([]string, error) {
			calls++
			return []string{q.Filter, "x"}, nil
		}))
	cache := &memCache{}
	wrapped := ChainQueries(qbus, QueryCache(cache, time.Minute, nil, nil))

	first, err := queries.Ask[listQuery, []string](context.Background(), wrapped, listQuery{Filter: "a"})
	require.NoError(t, err)
	second, err := queries.Ask[listQuery, []string](context.Background(), wrapped, listQuery{Filter: "a"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	cbus := commands.NewInMemoryBus()
	commands.RegisterHandler[renameCommand, renameResult](cbus, "test.rename", commands.HandlerFunc[renameCommand, renameResult](
		func(ctx context.Context, cmd renameCommand) (renameResult, error) {
			return renameResult{}, nil
		}))
	_, err = ChainCommands(cbus, CacheInvalidation(cache, nil)).Dispatch(context.Background(), renameCommand{})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.invalidated)

	_, err = queries.Ask[listQuery, []string](context.Background(), wrapped, listQuery{Filter: "a"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestQueryCacheDropsResultsOverlappingInvalidation(t *testing.T) {
	cache := &memCache{}
	calls := 0
	qbus := queries.NewInMemoryBus()
	queries.RegisterHandler[listQuery, []string](qbus, "test.list", queries.HandlerFunc[listQuery, []string](
		func(ctx context.Context, q listQuery) ([]string, error) {
			calls++
			if calls == 1 {
				// a command commits while this read is in flight
				require.NoError(t, cache.Invalidate(ctx))
				return []string{"blocked-unit"}, nil
			}
			return []string{"fresh"}, nil
		}))
	wrapped := ChainQueries(qbus, QueryCache(cache, time.Minute, nil, nil))

	first, err := queries.Ask[listQuery, []string](context.Background(), wrapped, listQuery{Filter: "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"blocked-unit"}, first)

	second, err := queries.Ask[listQuery, []string](context.Background(), wrapped, listQuery{Filter: "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, second)
	assert.Equal(t, 2, calls)
}

func TestChainOrderIsOutermostFirst(t *testing.T) {
	var order []string
	tag := func(name string) CommandMiddleware {
		return func(next commands.Bus) commands.Bus {
			return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
				order = append(order, name)
				return next.Dispatch(ctx, cmd)
			})
		}
	}
	bus := commands.NewInMemoryBus()
	bus.RegisterRaw("test.rename", func(ctx context.Context, cmd commands.Command) (any, error) { return nil, nil })
	_, err := ChainCommands(bus, tag("outer"), nil, tag("inner")).Dispatch(context.Background(), renameCommand{})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)

	_, err = bus.Dispatch(context.Background(), listQueryCommand{})
	assert.ErrorIs(t, err, commands.ErrHandlerNotFound)
}

type listQueryCommand struct{}

func (listQueryCommand) Key() string { return "test.unknown" }
