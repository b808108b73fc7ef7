// Package tx defines the transaction boundary the domain services depend on.
// The Postgres implementation lives in infrastructure/storage/postgres.
package tx

import (
	"context"
)

// Manager runs a function inside a database transaction.
type Manager interface {
	// RunInTransaction executes fn within a transaction: commit when fn
	// returns nil, rollback otherwise. A nested call reuses the transaction
	// already carried by ctx.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager adds read-only transactions for query paths. Writes inside
// ReadOnly fail at the database.
type ReadOnlyManager interface {
	Manager

	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
