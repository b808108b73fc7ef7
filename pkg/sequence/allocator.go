// Package sequence provides named monotonic counters backed by PostgreSQL.
// Payment reference numbers are allocated from the "paiementRef" counter.
package sequence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PaymentRef is the counter name used for payment reference numbers.
const PaymentRef = "paiementRef"

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Allocator hands out strictly increasing integers per named counter.
//
// The increment is a single UPSERT ... RETURNING statement, so atomicity is
// enforced by the database row lock. No application-level mutex is involved;
// the guarantee holds across multiple processes sharing one database.
type Allocator struct {
	querier Querier
}

// New creates a new allocator over the given querier (pool or transaction).
func New(querier Querier) *Allocator {
	return &Allocator{querier: querier}
}

// Next atomically increments the counter identified by name and returns the
// new value. A never-seen name is created on first use; its first allocation
// returns 1. Values are never reused: a caller that allocates and then fails
// to persist leaves a gap, which is accepted (uniqueness, not contiguity, is
// the invariant).
func (a *Allocator) Next(ctx context.Context, name string) (int64, error) {
	if a == nil {
		return 0, fmt.Errorf("sequence allocator is not initialized")
	}
	if name == "" {
		return 0, fmt.Errorf("sequence name must not be empty")
	}

	var seq int64
	err := a.querier.QueryRow(ctx, `
        INSERT INTO counters (name, seq)
        VALUES ($1, 1)
        ON CONFLICT (name) DO UPDATE SET seq = counters.seq + 1
        RETURNING seq
	`, name).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next %q: %w", name, err)
	}

	return seq, nil
}

// SetNext forces the counter to the given value (for migration or backfill).
// The next allocation returns value+1.
func (a *Allocator) SetNext(ctx context.Context, name string, value int64) error {
	if name == "" {
		return fmt.Errorf("sequence name must not be empty")
	}
	if value < 0 {
		return fmt.Errorf("sequence value must not be negative")
	}

	var result int64
	err := a.querier.QueryRow(ctx, `
        INSERT INTO counters (name, seq)
        VALUES ($1, $2)
        ON CONFLICT (name) DO UPDATE SET seq = $2
        RETURNING seq
	`, name, value).Scan(&result)
	if err != nil {
		return fmt.Errorf("set %q: %w", name, err)
	}

	return nil
}

// Current reads the counter without incrementing it. Returns 0 for a
// never-seen name. Intended for diagnostics only; never use the result
// as an allocation.
func (a *Allocator) Current(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("sequence name must not be empty")
	}

	var seq int64
	err := a.querier.QueryRow(ctx,
		`SELECT seq FROM counters WHERE name = $1`, name).Scan(&seq)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("current %q: %w", name, err)
	}

	return seq, nil
}
