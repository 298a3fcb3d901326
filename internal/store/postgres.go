package store

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS contracts (
	name           TEXT PRIMARY KEY,
	admin          TEXT NOT NULL,
	partners       JSONB NOT NULL DEFAULT '{}',
	params         JSONB,
	initialized_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS counters (
	name  TEXT PRIMARY KEY,
	value BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS claims (
	id           BIGINT PRIMARY KEY,
	submitter    TEXT NOT NULL,
	text         TEXT NOT NULL,
	category     TEXT NOT NULL,
	sources      JSONB NOT NULL DEFAULT '[]',
	status       TEXT NOT NULL DEFAULT 'pending',
	stake_pool   BIGINT NOT NULL DEFAULT 0,
	review_count BIGINT NOT NULL DEFAULT 0,
	created_at   BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS experts (
	address           TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	bio               TEXT NOT NULL,
	categories        JSONB NOT NULL DEFAULT '[]',
	staked_amount     BIGINT NOT NULL,
	expert_level      TEXT NOT NULL,
	reputation_points BIGINT NOT NULL DEFAULT 0,
	reputation_level  TEXT NOT NULL,
	total_reviews     BIGINT NOT NULL DEFAULT 0,
	correct_reviews   BIGINT NOT NULL DEFAULT 0,
	total_earnings    BIGINT NOT NULL DEFAULT 0,
	registered_at     BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS reviews (
	id           BIGINT PRIMARY KEY,
	claim_id     BIGINT NOT NULL,
	expert       TEXT NOT NULL,
	verdict      TEXT NOT NULL,
	reasoning    TEXT NOT NULL,
	confidence   BIGINT NOT NULL,
	stake_amount BIGINT NOT NULL,
	rewarded     BOOLEAN NOT NULL DEFAULT false,
	created_at   BIGINT NOT NULL,
	UNIQUE (claim_id, expert)
);

CREATE TABLE IF NOT EXISTS consensus (
	claim_id              BIGINT PRIMARY KEY,
	final_verdict         TEXT NOT NULL,
	total_stake_true      BIGINT NOT NULL,
	total_stake_false     BIGINT NOT NULL,
	confidence_percentage BIGINT NOT NULL,
	is_finalized          BOOLEAN NOT NULL DEFAULT false,
	distributed           BOOLEAN NOT NULL DEFAULT false,
	computed_at           BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS transfers (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	from_addr  TEXT NOT NULL,
	to_addr    TEXT NOT NULL,
	amount     BIGINT NOT NULL,
	claim_id   BIGINT NOT NULL DEFAULT 0,
	review_id  BIGINT NOT NULL DEFAULT 0,
	created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	seq        BIGSERIAL PRIMARY KEY,
	id         TEXT NOT NULL UNIQUE,
	kind       TEXT NOT NULL,
	entity_id  TEXT NOT NULL,
	created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reviews_claim_id ON reviews(claim_id);
CREATE INDEX IF NOT EXISTS idx_reviews_expert ON reviews(expert);
CREATE INDEX IF NOT EXISTS idx_transfers_claim_id ON transfers(claim_id);
CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
CREATE INDEX IF NOT EXISTS idx_events_entity_id ON events(entity_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// WithTx runs fn in a serializable transaction. Serialization failures
// surface as SQLSTATE 40001 and are retried by the caller.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer pgTx.Rollback(ctx) //nolint:errcheck

	if err := fn(ctx, newSQLTx(pgConn{tx: pgTx}, "postgres")); err != nil {
		return err
	}
	return eris.Wrap(pgTx.Commit(ctx), "postgres: commit")
}

// pgConn adapts pgx.Tx to conn.
type pgConn struct {
	tx pgx.Tx
}

func (c pgConn) exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := c.tx.Exec(ctx, rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c pgConn) query(ctx context.Context, query string, args ...any) (rowIter, error) {
	rows, err := c.tx.Query(ctx, rebind(query), args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c pgConn) queryRow(ctx context.Context, query string, args ...any) scannable {
	return c.tx.QueryRow(ctx, rebind(query), args...)
}

// rebind rewrites ? placeholders to $1, $2, ...
func rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
