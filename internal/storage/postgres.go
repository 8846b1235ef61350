// Package storage provides the Postgres and in-memory implementations of the
// store contracts in internal/core/ports.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/ports"
	"github.com/KieranMcFarlane/panther-chat-sub003/migrations"
)

const (
	connectRetries    = 10
	connectRetryDelay = 2 * time.Second
	migrationLockID   = 1000
)

// DB wraps a pgx pool and exposes the store implementations.
type DB struct {
	Pool *pgxpool.Pool
}

// New connects with retry so the engine survives a database that is still
// starting up.
func New(ctx context.Context, dsn string) (*DB, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	var pool *pgxpool.Pool
	for i := 0; i < connectRetries; i++ {
		pool, err = pgxpool.NewWithConfig(ctx, config)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return &DB{Pool: pool}, nil
			}
		}

		if pool != nil {
			pool.Close()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectRetryDelay):
		}
	}

	return nil, fmt.Errorf("connect to database after retries: %w", err)
}

// Close releases the pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// Ping reports database reachability; used by the health server.
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Migrate applies the embedded goose migrations under an advisory lock so
// concurrent batch processes cannot race the schema.
func (db *DB) Migrate(ctx context.Context) error {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return err
	}

	defer func() {
		_, _ = conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockID)
	}()

	dbSQL := stdlib.OpenDB(*db.Pool.Config().ConnConfig)

	defer func() {
		_ = dbSQL.Close()
	}()

	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.Up(dbSQL, ".")
}

// Stores returns the full store bundle backed by this database.
func (db *DB) Stores() ports.Stores {
	return ports.Stores{
		Episodes:     &EpisodeStore{db: db},
		Bindings:     &BindingStore{db: db},
		Hypotheses:   &HypothesisStore{db: db},
		ClusterStats: &ClusterStatsStore{db: db},
		Signals:      &SignalStore{db: db},
	}
}
