// Package postgres stores the booking core in PostgreSQL through pgx, with
// statements built by goqu. Writers on one resource serialize on its row lock.
package postgres

import (
	"context"
	_ "embed"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

var dialect = goqu.Dialect("postgres")

const (
	tableResources    = "resources"
	tableReservations = "reservations"
	tableBlocks       = "calendar_blocks"
	tableOverrides    = "price_overrides"
	tableGuests       = "guests"
	tableOutbox       = "app_outbox"
	tableIdempotency  = "app_idempotency"
	tableInbox        = "app_inbox"
)

// NewPool parses dsn and applies the pool limits used in every environment.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 16
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = time.Minute
	cfg.ConnConfig.ConnectTimeout = 5 * time.Second
	return pgxpool.NewWithConfig(ctx, cfg)
}

// Migrate creates missing tables and indexes. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type statement interface {
	ToSQL() (string, []any, error)
}

func exec(ctx context.Context, q querier, op string, stmt statement) (pgconn.CommandTag, error) {
	sql, args, err := stmt.ToSQL()
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	tag, err := q.Exec(ctx, sql, args...)
	return tag, classify(op, err)
}

func query(ctx context.Context, q querier, op string, stmt statement) (pgx.Rows, error) {
	sql, args, err := stmt.ToSQL()
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, sql, args...)
	return rows, classify(op, err)
}

func queryRow(ctx context.Context, q querier, stmt statement) (pgx.Row, error) {
	sql, args, err := stmt.ToSQL()
	if err != nil {
		return nil, err
	}
	return q.QueryRow(ctx, sql, args...), nil
}
