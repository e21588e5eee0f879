package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"activation-server/internal/entitlement"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so the same
// query code serves plain reads and transaction-scoped, row-locking
// reads.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides database access for the activation server. It
// implements entitlement.TxStore: pool-backed reads outside a
// transaction, and InTx for the unit-of-work with per-record row locks.
type Repository struct {
	db *DB
	store
}

// store carries the querier the SQL runs against. locking adds FOR
// UPDATE to device/reseller reads; it is only set inside a transaction.
type store struct {
	q       querier
	locking bool
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{
		db:    db,
		store: store{q: db.Pool},
	}
}

// InTx runs fn against a transaction-scoped store and commits or rolls
// back as a whole. Device and reseller reads inside fn take FOR UPDATE
// row locks, serializing concurrent read-modify-write sequences on the
// same record; the multi-entity activation relies on this plus the
// single commit for its all-or-nothing guarantee.
func (r *Repository) InTx(ctx context.Context, fn func(entitlement.Store) error) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(&store{q: tx, locking: true}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// HealthCheck verifies database connectivity
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

func (s *store) lockSuffix() string {
	if s.locking {
		return " FOR UPDATE"
	}
	return ""
}
