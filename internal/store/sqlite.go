package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// The pool is limited to one connection so transactions serialize.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS contracts (
	name           TEXT PRIMARY KEY,
	admin          TEXT NOT NULL,
	partners       TEXT NOT NULL DEFAULT '{}',
	params         TEXT,
	initialized_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS counters (
	name  TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS claims (
	id           INTEGER PRIMARY KEY,
	submitter    TEXT NOT NULL,
	text         TEXT NOT NULL,
	category     TEXT NOT NULL,
	sources      TEXT NOT NULL DEFAULT '[]',
	status       TEXT NOT NULL DEFAULT 'pending',
	stake_pool   INTEGER NOT NULL DEFAULT 0,
	review_count INTEGER NOT NULL DEFAULT 0,
	created_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS experts (
	address           TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	bio               TEXT NOT NULL,
	categories        TEXT NOT NULL DEFAULT '[]',
	staked_amount     INTEGER NOT NULL,
	expert_level      TEXT NOT NULL,
	reputation_points INTEGER NOT NULL DEFAULT 0,
	reputation_level  TEXT NOT NULL,
	total_reviews     INTEGER NOT NULL DEFAULT 0,
	correct_reviews   INTEGER NOT NULL DEFAULT 0,
	total_earnings    INTEGER NOT NULL DEFAULT 0,
	registered_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS reviews (
	id           INTEGER PRIMARY KEY,
	claim_id     INTEGER NOT NULL,
	expert       TEXT NOT NULL,
	verdict      TEXT NOT NULL,
	reasoning    TEXT NOT NULL,
	confidence   INTEGER NOT NULL,
	stake_amount INTEGER NOT NULL,
	rewarded     INTEGER NOT NULL DEFAULT 0,
	created_at   INTEGER NOT NULL,
	UNIQUE (claim_id, expert)
);

CREATE TABLE IF NOT EXISTS consensus (
	claim_id              INTEGER PRIMARY KEY,
	final_verdict         TEXT NOT NULL,
	total_stake_true      INTEGER NOT NULL,
	total_stake_false     INTEGER NOT NULL,
	confidence_percentage INTEGER NOT NULL,
	is_finalized          INTEGER NOT NULL DEFAULT 0,
	distributed           INTEGER NOT NULL DEFAULT 0,
	computed_at           INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS transfers (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	from_addr  TEXT NOT NULL,
	to_addr    TEXT NOT NULL,
	amount     INTEGER NOT NULL,
	claim_id   INTEGER NOT NULL DEFAULT 0,
	review_id  INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	kind       TEXT NOT NULL,
	entity_id  TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reviews_claim_id ON reviews(claim_id);
CREATE INDEX IF NOT EXISTS idx_reviews_expert ON reviews(expert);
CREATE INDEX IF NOT EXISTS idx_transfers_claim_id ON transfers(claim_id);
CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
CREATE INDEX IF NOT EXISTS idx_events_entity_id ON events(entity_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer sqlTx.Rollback() //nolint:errcheck

	if err := fn(ctx, newSQLTx(sqliteConn{tx: sqlTx}, "sqlite")); err != nil {
		return err
	}
	return eris.Wrap(sqlTx.Commit(), "sqlite: commit")
}

// sqliteConn adapts *sql.Tx to conn.
type sqliteConn struct {
	tx *sql.Tx
}

func (c sqliteConn) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := c.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c sqliteConn) query(ctx context.Context, query string, args ...any) (rowIter, error) {
	rows, err := c.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

func (c sqliteConn) queryRow(ctx context.Context, query string, args ...any) scannable {
	return c.tx.QueryRowContext(ctx, query, args...)
}

type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() { r.Rows.Close() } //nolint:errcheck
