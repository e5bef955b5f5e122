package postgres

import (
	"context"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"time"
)

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS cart_lifecycles (
	id                  TEXT PRIMARY KEY,
	shop_id             TEXT NOT NULL,
	cart_id             TEXT NOT NULL,
	status              TEXT NOT NULL,
	checkout_session_id TEXT,
	order_id            TEXT,
	cleared_at          TIMESTAMPTZ,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (shop_id, cart_id)
)`

// EnsureSchema creates the lifecycle table when missing. Safe to run on every start.
func EnsureSchema(ctx context.Context, db execer) error {
	_, err := db.Exec(ctx, schema)
	return err
}
