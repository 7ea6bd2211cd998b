package scylla

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/gocql/gocql"
)

var keyspacePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

type SessionConfig struct {
	Hosts             []string
	Keyspace          string
	Timeout           time.Duration
	Consistency       gocql.Consistency
	ReplicationFactor int
	Username          string
	Password          string
}

// NewSession ensures the journal schema exists and returns a connected session.
func NewSession(ctx context.Context, cfg SessionConfig, logger *slog.Logger) (*gocql.Session, error) {
	if !keyspacePattern.MatchString(cfg.Keyspace) {
		return nil, fmt.Errorf("invalid keyspace name: %s", cfg.Keyspace)
	}
	if cfg.ReplicationFactor <= 0 {
		cfg.ReplicationFactor = 1
	}
	if cfg.Consistency == 0 {
		cfg.Consistency = gocql.Quorum
	}

	baseSession, err := cluster(cfg, "").CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to scylla: %w", err)
	}
	defer baseSession.Close()
	if err := ensureKeyspace(ctx, baseSession, cfg); err != nil {
		return nil, err
	}

	session, err := cluster(cfg, cfg.Keyspace).CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to keyspace %s: %w", cfg.Keyspace, err)
	}
	if err := ensureTables(ctx, session, cfg); err != nil {
		session.Close()
		return nil, err
	}
	if logger != nil {
		logger.Info("scylla connected", "hosts", cfg.Hosts, "keyspace", cfg.Keyspace)
	}
	return session, nil
}

func cluster(cfg SessionConfig, keyspace string) *gocql.ClusterConfig {
	c := gocql.NewCluster(cfg.Hosts...)
	c.Keyspace = keyspace
	c.Consistency = cfg.Consistency
	if cfg.Timeout > 0 {
		c.Timeout = cfg.Timeout
		c.ConnectTimeout = cfg.Timeout
	}
	if cfg.Username != "" {
		c.Authenticator = gocql.PasswordAuthenticator{Username: cfg.Username, Password: cfg.Password}
	}
	return c
}

func ensureKeyspace(ctx context.Context, session *gocql.Session, cfg SessionConfig) error {
	cql := fmt.Sprintf(
		"CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}",
		cfg.Keyspace, cfg.ReplicationFactor,
	)
	if err := session.Query(cql).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create keyspace: %w", err)
	}
	return nil
}

func ensureTables(ctx context.Context, session *gocql.Session, cfg SessionConfig) error {
	quotes := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.quotes_by_day (
	check_in_day text,
	entry_id timeuuid,
	search_id text,
	accommodation_id text,
	check_in timestamp,
	check_out timestamp,
	guests int,
	payment_method text,
	currency text,
	price_per_night text,
	total text,
	min_stay_violated boolean,
	recorded_at timestamp,
	PRIMARY KEY (check_in_day, entry_id)
) WITH CLUSTERING ORDER BY (entry_id DESC);`, cfg.Keyspace)
	if err := session.Query(quotes).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create quotes_by_day table: %w", err)
	}
	return nil
}
