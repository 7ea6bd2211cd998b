package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageMemory = "memory"
	StorageMongo  = "mongo"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env      string
	LogLevel string
	HTTPAddr string
	GRPCAddr string
	Storage  string

	MongoURI string
	MongoDB  string

	KafkaBrokers       []string
	KafkaTopicPrefix   string
	KafkaGroupID       string
	MaintenanceTopic   string
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration
	IdempotencyTTL     time.Duration
	InboxRetention     time.Duration
	OutboxMaxAttempts  int

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	SearchCacheTTL time.Duration

	SearchConcurrency int
	Currency          string

	S3Endpoint         string
	S3AccessKey        string
	S3SecretKey        string
	S3Bucket           string
	S3UseSSL           bool
	CatalogSnapshotKey string
	CatalogFixtures    string

	ScyllaHosts    []string
	ScyllaKeyspace string
	ScyllaTimeout  time.Duration

	AdminTokenHash string
}

// Load reads .env when present, then parses configuration from the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := Config{
		Env:                getEnv("APP_ENV", "dev"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr:           getEnv("GRPC_ADDR", ""),
		Storage:            strings.ToLower(getEnv("STORAGE", StorageMemory)),
		MongoURI:           os.Getenv("MONGO_URI"),
		MongoDB:            getEnv("MONGO_DB", "innkeep"),
		KafkaTopicPrefix:   getEnv("KAFKA_TOPIC_PREFIX", ""),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "innkeep"),
		MaintenanceTopic:   getEnv("MAINTENANCE_TOPIC", "maintenance.events.v1"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		Currency:           strings.ToUpper(getEnv("CURRENCY", "BRL")),
		S3Endpoint:         os.Getenv("S3_ENDPOINT"),
		S3AccessKey:        getEnv("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:        getEnv("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:           getEnv("S3_BUCKET", "innkeep-catalog"),
		CatalogSnapshotKey: os.Getenv("CATALOG_SNAPSHOT_KEY"),
		CatalogFixtures:    getEnv("CATALOG_FIXTURES", "data/catalog.json"),
		ScyllaKeyspace:     getEnv("SCYLLA_KEYSPACE", "innkeep"),
		AdminTokenHash:     os.Getenv("ADMIN_TOKEN_HASH"),
	}
	cfg.KafkaBrokers = splitList(os.Getenv("KAFKA_BROKERS"))
	cfg.ScyllaHosts = splitList(os.Getenv("SCYLLA_HOSTS"))

	var err error
	if cfg.IdempotencyTTL, err = parseDurationEnv("IDEMP_TTL", 168*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.InboxRetention, err = parseDurationEnv("INBOX_RETENTION", 336*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.OutboxMaxAttempts, err = parseIntEnv("OUTBOX_MAX_ATTEMPTS", 10); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = parseDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.SearchCacheTTL, err = parseDurationEnv("SEARCH_CACHE_TTL", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ScyllaTimeout, err = parseDurationEnv("SCYLLA_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.RedisDB, err = parseIntEnv("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.SearchConcurrency, err = parseIntEnv("SEARCH_CONCURRENCY", 8); err != nil {
		return Config{}, err
	}
	if cfg.S3UseSSL, err = parseBoolEnv("S3_USE_SSL", false); err != nil {
		return Config{}, err
	}

	retryStr := getEnv("RETRY_BACKOFF", "1s,5s,30s")
	for _, raw := range strings.Split(retryStr, ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}

	switch cfg.Storage {
	case StorageMemory:
	case StorageMongo:
		if cfg.MongoURI == "" {
			return Config{}, fmt.Errorf("MONGO_URI is required when STORAGE=mongo")
		}
	default:
		return Config{}, fmt.Errorf("invalid STORAGE %q", cfg.Storage)
	}
	if len(cfg.Currency) != 3 {
		return Config{}, fmt.Errorf("invalid CURRENCY %q", cfg.Currency)
	}
	if cfg.SearchConcurrency < 1 {
		return Config{}, fmt.Errorf("SEARCH_CONCURRENCY must be at least 1")
	}
	return cfg, nil
}

// IsDev reports environments where an unset admin token leaves admin routes open.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.Env) {
	case "dev", "local", "test":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return v, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
