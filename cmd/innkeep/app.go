package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"innkeep/internal/app/commands"
	"innkeep/internal/app/handlers/catalog"
	searchapp "innkeep/internal/app/handlers/search"
	"innkeep/internal/app/middleware"
	appoutbox "innkeep/internal/app/outbox"
	"innkeep/internal/app/policies"
	"innkeep/internal/app/queries"
	svcsearch "innkeep/internal/app/services/search"
	"innkeep/internal/app/uow"
	"innkeep/internal/infra/broker/kafka"
	"innkeep/internal/infra/cache/redis"
	"innkeep/internal/infra/config"
	"innkeep/internal/infra/db/mongo"
	grpcserver "innkeep/internal/infra/grpc"
	ginserver "innkeep/internal/infra/http/gin"
	"innkeep/internal/infra/inbox"
	"innkeep/internal/infra/journal/scylla"
	"innkeep/internal/infra/obs"
	outboxinfra "innkeep/internal/infra/outbox"
	"innkeep/internal/infra/security"
	"innkeep/internal/infra/storage/memory"
	"innkeep/internal/infra/storage/s3"
	"innkeep/internal/infra/validation"
)

const inboxConsumer = "innkeep-maintenance"

type application struct {
	handlers   ginserver.Handlers
	factory    uow.UoWFactory
	snapshots  policies.SnapshotStore
	checks     []obs.Check
	background []func(context.Context) error
	closers    []func(context.Context) error
	closeOnce  sync.Once
}

// infrastructure holds the adapters chosen by configuration.
type infrastructure struct {
	factory     uow.UoWFactory
	idempotency middleware.IdempotencyStore
	outbox      appoutbox.Outbox
	cache       middleware.QueryCacheStore
	journal     policies.QuoteJournal
	snapshots   policies.SnapshotStore
	inbox       kafka.Deduper
	producer    *kafka.Producer
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{}
	infra, err := app.connect(ctx, cfg, logger)
	if err != nil {
		app.close(logger)
		return nil, err
	}
	app.factory = infra.factory
	app.snapshots = infra.snapshots

	commandBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()
	registerCommands(commandBus, cfg, infra, logger)
	registerQueries(queryBus, cfg, infra, logger)

	validator := validation.New()
	commandMW := []middleware.CommandMiddleware{
		middleware.Validation(validator),
		middleware.Authorization(security.Authorizer{}, logger),
		middleware.Idempotency(infra.idempotency, middleware.JSONResultCodec{}),
	}
	queryMW := []middleware.QueryMiddleware{
		middleware.QueryValidation(validator),
		searchapp.JournalQuotes(infra.journal, logger),
	}
	if infra.cache != nil {
		commandMW = append(commandMW, middleware.CacheInvalidation(infra.cache, logger))
		queryMW = append(queryMW, middleware.QueryCache(infra.cache, cfg.SearchCacheTTL, middleware.JSONResultCodec{}, logger))
	}
	commandMW = append(commandMW,
		middleware.OutboxFlush(infra.outbox, logger),
		middleware.Transaction(infra.factory, middleware.WithTransactionLogger(logger)),
	)
	commandsWithMW := middleware.ChainCommands(commandBus, commandMW...)
	queriesWithMW := middleware.ChainQueries(queryBus, queryMW...)

	if len(cfg.KafkaBrokers) > 0 && cfg.MaintenanceTopic != "" {
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, nil, &kafka.MaintenanceHandler{
			Bus:    commandsWithMW,
			Inbox:  infra.inbox,
			Logger: logger,
		}, logger)
		if err != nil {
			app.close(logger)
			return nil, fmt.Errorf("kafka consumer: %w", err)
		}
		app.closers = append(app.closers, func(context.Context) error { return consumer.Close() })
		app.background = append(app.background, func(ctx context.Context) error {
			return consumer.Run(ctx, []string{cfg.MaintenanceTopic})
		})
	}

	if cfg.GRPCAddr != "" {
		hs := grpcserver.NewHealthServer(app.checks, logger)
		app.background = append(app.background, func(ctx context.Context) error {
			return hs.Serve(ctx, cfg.GRPCAddr)
		})
	}

	app.handlers = ginserver.Handlers{
		Search:  ginserver.SearchHandler{Queries: queriesWithMW, Logger: logger},
		Catalog: ginserver.CatalogHandler{Queries: queriesWithMW, Logger: logger},
		Admin:   ginserver.AdminHandler{Commands: commandsWithMW, Queries: queriesWithMW, Logger: logger},
		AdminAuth: ginserver.AdminAuth{
			Tokens: security.AdminTokens{Hash: cfg.AdminTokenHash, Open: cfg.IsDev()},
			Logger: logger,
		}.Handle,
	}
	if cfg.AdminTokenHash == "" {
		if cfg.IsDev() {
			logger.Warn("ADMIN_TOKEN_HASH unset, admin routes are open", "env", cfg.Env)
		} else {
			logger.Warn("ADMIN_TOKEN_HASH unset, admin routes are disabled", "env", cfg.Env)
		}
	}
	return app, nil
}

// connect opens every configured backend. Optional backends are skipped
// when their address is empty.
func (a *application) connect(ctx context.Context, cfg config.Config, logger *slog.Logger) (infrastructure, error) {
	var infra infrastructure

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return infra, fmt.Errorf("kafka producer: %w", err)
		}
		infra.producer = producer
		a.closers = append(a.closers, func(context.Context) error { return producer.Close() })
	}

	switch cfg.Storage {
	case config.StorageMongo:
		client, err := mongo.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return infra, fmt.Errorf("mongo connect: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.checks = append(a.checks, obs.Check{Name: "mongo", Probe: client.Ping})
		if err := client.EnsureIndexes(ctx); err != nil {
			return infra, fmt.Errorf("mongo indexes: %w", err)
		}
		infra.factory = client.Factory()
		if infra.idempotency, err = mongo.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL); err != nil {
			return infra, fmt.Errorf("idempotency store: %w", err)
		}
		store, err := outboxinfra.NewStore(ctx, client.DB)
		if err != nil {
			return infra, fmt.Errorf("outbox store: %w", err)
		}
		infra.outbox = store
		if infra.producer != nil {
			worker := &outboxinfra.Worker{
				Store:       store,
				Producer:    infra.producer,
				Interval:    cfg.OutboxPollInterval,
				TopicPrefix: cfg.KafkaTopicPrefix,
				Source:      appoutbox.DefaultSource,
				Backoff:     cfg.RetryBackoff,
				MaxAttempts: cfg.OutboxMaxAttempts,
				Logger:      logger,
			}
			a.background = append(a.background, worker.Run)
		} else {
			logger.Warn("kafka not configured, outbox events stay in mongo")
		}
		if infra.inbox, err = inbox.NewStore(ctx, client.DB, inboxConsumer, cfg.InboxRetention); err != nil {
			return infra, fmt.Errorf("inbox store: %w", err)
		}
	default:
		infra.factory = memory.NewFactory()
		infra.idempotency = memory.NewIdempotencyStore(cfg.IdempotencyTTL)
		opts := []memory.OutboxOption{memory.WithOutboxLogger(logger)}
		if infra.producer != nil {
			opts = append(opts, memory.WithPublisher(infra.producer, cfg.KafkaTopicPrefix, appoutbox.DefaultSource))
		}
		infra.outbox = memory.NewOutbox(opts...)
		infra.inbox = inbox.NewMemoryStore()
	}

	if cfg.RedisAddr != "" {
		rdb, err := redis.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return infra, fmt.Errorf("redis: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return rdb.Close() })
		a.checks = append(a.checks, obs.Check{Name: "redis", Probe: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		infra.cache = redis.NewQueryCache(rdb, "innkeep:query")
	}

	if len(cfg.ScyllaHosts) > 0 {
		session, err := scylla.NewSession(ctx, scylla.SessionConfig{
			Hosts:       cfg.ScyllaHosts,
			Keyspace:    cfg.ScyllaKeyspace,
			Timeout:     cfg.ScyllaTimeout,
			Consistency: gocql.LocalQuorum,
		}, logger)
		if err != nil {
			return infra, fmt.Errorf("scylla: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { session.Close(); return nil })
		infra.journal = scylla.NewJournal(session, logger)
	} else {
		infra.journal = memory.NewQuoteJournal(0)
	}

	if cfg.S3Endpoint != "" {
		store, err := s3.NewSnapshotStore(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, logger)
		if err != nil {
			return infra, fmt.Errorf("s3: %w", err)
		}
		infra.snapshots = store
	}
	return infra, nil
}

func registerCommands(bus *commands.InMemoryBus, cfg config.Config, infra infrastructure, logger *slog.Logger) {
	base := catalog.Base{
		Outbox:  infra.outbox,
		Encoder: appoutbox.JSONEventEncoder{},
		Logger:  logger,
	}
	commands.Register(bus, &catalog.UpsertAccommodationHandler{Base: base})
	commands.Register(bus, &catalog.BlockAccommodationHandler{Base: base})
	commands.Register(bus, &catalog.UnblockAccommodationHandler{Base: base})
	commands.Register(bus, &catalog.UpsertPeriodHandler{Base: base})
	commands.Register(bus, &catalog.UpsertPriceRuleHandler{Base: base, DefaultCurrency: cfg.Currency})
	commands.Register(bus, &catalog.OpenHoldHandler{Base: base, IDGenerator: uuid.NewString})
	commands.Register(bus, &catalog.CloseHoldHandler{Base: base})
	commands.Register(bus, &catalog.ExportSnapshotHandler{
		Base:       base,
		Store:      infra.snapshots,
		DefaultKey: cfg.CatalogSnapshotKey,
	})
}

func registerQueries(bus *queries.InMemoryBus, cfg config.Config, infra infrastructure, logger *slog.Logger) {
	queries.Register(bus, &catalog.ListAccommodationsHandler{UoWFactory: infra.factory})
	queries.Register(bus, &catalog.ListPeriodsHandler{UoWFactory: infra.factory})
	queries.Register(bus, &catalog.ListPriceRulesHandler{UoWFactory: infra.factory})
	queries.Register(bus, &catalog.ListHoldsHandler{UoWFactory: infra.factory})
	queries.Register(bus, &catalog.ResolvePeriodHandler{UoWFactory: infra.factory})
	queries.Register(bus, &catalog.RecentQuotesHandler{Journal: infra.journal})
	queries.Register(bus, &searchapp.SearchAvailabilityHandler{
		UoWFactory: infra.factory,
		Service:    &svcsearch.Service{Concurrency: cfg.SearchConcurrency, Logger: logger},
		Logger:     logger,
	})
}

// close releases backends in reverse order of acquisition.
func (a *application) close(logger *slog.Logger) {
	a.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](ctx); err != nil {
				logger.Warn("close failed", "error", err)
			}
		}
	})
}
