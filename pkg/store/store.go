// Package store is C5: the relational metadata database. It wraps a
// Postgres connection pool, exposes typed CRUD helpers for the data model,
// and implements the capture/apply machinery of C7 on top of a
// trigger-fed change log (see capture.go, genericrows.go).
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store holds the connection pool. Services receive a Store; tests can
// substitute a mock by depending on the narrower interfaces other packages
// define and Store satisfies (changeset.RowStore, filestore.FileInserter,
// syncengine.SyncStore).
type Store struct {
	pool *pgxpool.Pool
}

// Connect connects to Postgres using the given DSN and returns a Store.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks that Postgres is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
