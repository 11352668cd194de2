package prefs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS user_preferences (
	key        TEXT PRIMARY KEY,
	value      INTEGER NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	selectSQL = `SELECT value FROM user_preferences WHERE key = $1`
	upsertSQL = `INSERT INTO user_preferences (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
)

// querier is the subset of *pgxpool.Pool the store uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore keeps preferences in a PostgreSQL table.
type PGStore struct {
	db    querier
	close func()
}

// NewPGStore connects to databaseURL, verifies the connection, and creates
// the preferences table if needed.
func NewPGStore(ctx context.Context, databaseURL string) (*PGStore, error) {
	if databaseURL == "" {
		return nil, errors.New("prefs: DATABASE_URL is required for the postgres backend")
	}

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	// One scalar read per page load needs few connections.
	poolConfig.MaxConns = 2
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PGStore{db: pool, close: pool.Close}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGStore) migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create preferences table: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, key string) (int, bool, error) {
	var v int32
	err := s.db.QueryRow(ctx, selectSQL, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return int(v), true, nil
}

func (s *PGStore) Set(ctx context.Context, key string, value int) error {
	_, err := s.db.Exec(ctx, upsertSQL, key, int32(value))
	return err
}

func (s *PGStore) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}
