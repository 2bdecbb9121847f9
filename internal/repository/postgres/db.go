// internal/repository/postgres/db.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	xerrors "authsession-service/internal/pkg/errors"
	"authsession-service/internal/pkg/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dbtx is the subset of *pgxpool.Pool the repositories use.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type DB struct {
	pool *pgxpool.Pool
}

func NewDB(pool *pgxpool.Pool) *DB {
	return &DB{pool: pool}
}

func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping reports whether the database answers within the context deadline.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", xerrors.ErrStoreUnavailable, err)
	}
	return nil
}

func (db *DB) Close() {
	db.pool.Close()
}

// storeErr tags every driver failure as a store outage so callers can map it to 503.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, xerrors.ErrStoreUnavailable, err)
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func observe(op string, start time.Time) {
	metrics.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
