package payment

import (
	"context"

	"encaissement/internal/core/id"
)

// ListOptions controls bulk payment queries.
type ListOptions struct {
	// SortByDateDesc orders results most recent first.
	SortByDateDesc bool

	// Limit caps the result set; zero means no limit.
	Limit int
}

// Repository defines payment storage operations.
//
// Implementations must use single-row atomic writes; no cross-record
// transactional isolation is assumed between create and read.
type Repository interface {
	// Create inserts a new payment. The payment must already carry its RefID.
	Create(ctx context.Context, p *Payment) error

	// GetByID retrieves a payment by record id.
	GetByID(ctx context.Context, paymentID id.ID) (*Payment, error)

	// Update replaces the mutable fields of an existing payment.
	// ref_id is never written by this operation.
	Update(ctx context.Context, p *Payment) error

	// Delete permanently removes a payment.
	Delete(ctx context.Context, paymentID id.ID) error

	// List retrieves payments with optional ordering and limit.
	List(ctx context.Context, opts ListOptions) ([]Payment, error)

	// ListByUser retrieves payments recorded by the given user.
	ListByUser(ctx context.Context, userID id.ID) ([]Payment, error)
}

// Allocator hands out the next reference number for a named counter.
// Satisfied by *sequence.Allocator.
type Allocator interface {
	Next(ctx context.Context, name string) (int64, error)
}
