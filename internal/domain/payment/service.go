package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"encaissement/internal/core/apperror"
	"encaissement/internal/core/id"
	"encaissement/internal/core/tx"
	"encaissement/pkg/logger"
	"encaissement/pkg/sequence"
)

// RecentDefaultLimit is used when a recent-payments query gives no limit.
const RecentDefaultLimit = 5

// Service owns the payment record lifecycle and enforces the
// reference-number invariant.
type Service struct {
	repo      Repository
	allocator Allocator
	roTx      tx.ReadOnlyManager
}

// NewService creates a new payment service. List queries run through roTx
// in read-only transactions.
func NewService(repo Repository, allocator Allocator, roTx tx.ReadOnlyManager) *Service {
	return &Service{
		repo:      repo,
		allocator: allocator,
		roTx:      roTx,
	}
}

// CreateInput carries the fields accepted at payment creation.
type CreateInput struct {
	Client         string
	Montant        decimal.Decimal
	Date           *time.Time
	Moyen          Method
	Description    string
	Faculte        string
	AttachmentPath string
	OwnerUserID    id.ID
	Metadata       map[string]any

	// RefID is honored only for migration imports that carry numbers from
	// a previous system. Zero means allocate.
	RefID int64
}

// Create validates the input, allocates the next reference number from the
// "paiementRef" counter and persists the record, in that order.
//
// If persistence fails after allocation, the number is consumed and never
// reused. That leaves a gap in the sequence, which is accepted: uniqueness,
// not contiguity, is the invariant. No counter rollback is performed.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Payment, error) {
	p := New(in.Client, in.Montant, in.OwnerUserID)
	p.Moyen = in.Moyen
	p.Description = in.Description
	p.AttachmentPath = in.AttachmentPath
	p.Metadata = in.Metadata
	p.RefID = in.RefID
	if in.Faculte != "" {
		p.Faculte = in.Faculte
	}
	if in.Date != nil {
		p.Date = *in.Date
	}

	// Validation is detected and reported before any storage call.
	if err := p.Validate(ctx); err != nil {
		return nil, err
	}

	if p.RefID == 0 {
		refID, err := s.allocator.Next(ctx, sequence.PaymentRef)
		if err != nil {
			return nil, apperror.NewStorageUnavailable(err).
				WithDetail("sequence", sequence.PaymentRef)
		}
		p.RefID = refID
	}

	if err := s.repo.Create(ctx, p); err != nil {
		// The allocated number is consumed even though the record was not
		// saved. An orphaned attachment may also remain in the blob store.
		logger.Warn(ctx, "payment persist failed after allocation",
			"ref_id", p.RefID,
			"attachment_path", p.AttachmentPath,
			"error", err)
		if apperror.IsAppError(err) {
			return nil, err
		}
		return nil, apperror.NewStorageUnavailable(err).WithDetail("refId", p.RefID)
	}

	logger.Info(ctx, "payment created",
		"id", p.ID,
		"ref_id", p.RefID,
		"client", p.Client)

	return p, nil
}

// Get retrieves a single payment by its record id.
func (s *Service) Get(ctx context.Context, rawID string) (*Payment, error) {
	paymentID, err := id.Parse(rawID)
	if err != nil {
		return nil, apperror.NewInvalidIdentifier(rawID)
	}
	return s.repo.GetByID(ctx, paymentID)
}

// List retrieves payments, optionally sorted by date descending and limited.
// Reads never mutate reference numbers or trigger allocation.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Payment, error) {
	var payments []Payment
	err := s.roTx.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		payments, err = s.repo.List(ctx, opts)
		return err
	})
	return payments, err
}

// ListByUser retrieves payments recorded by the given user.
func (s *Service) ListByUser(ctx context.Context, rawUserID string) ([]Payment, error) {
	userID, err := id.Parse(rawUserID)
	if err != nil {
		return nil, apperror.NewInvalidIdentifier(rawUserID)
	}
	var payments []Payment
	err = s.roTx.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		payments, err = s.repo.ListByUser(ctx, userID)
		return err
	})
	return payments, err
}

// ListRecent retrieves the most recent payments, newest first.
// A non-positive limit falls back to RecentDefaultLimit.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]Payment, error) {
	if limit <= 0 {
		limit = RecentDefaultLimit
	}
	return s.List(ctx, ListOptions{SortByDateDesc: true, Limit: limit})
}

// UpdateInput carries a partial field set for payment updates.
// Nil pointers leave the stored value untouched.
//
// There is deliberately no RefID field: a caller-supplied reference number
// in an update payload is silently ignored. The number is assigned exactly
// once at creation and immutable thereafter.
type UpdateInput struct {
	Client         *string
	Montant        *decimal.Decimal
	Date           *time.Time
	Moyen          *Method
	Description    *string
	Faculte        *string
	AttachmentPath *string
	Metadata       map[string]any
}

// Update merges the given fields into an existing payment.
func (s *Service) Update(ctx context.Context, rawID string, in UpdateInput) (*Payment, error) {
	paymentID, err := id.Parse(rawID)
	if err != nil {
		return nil, apperror.NewInvalidIdentifier(rawID)
	}

	p, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if in.Client != nil {
		p.Client = *in.Client
	}
	if in.Montant != nil {
		p.Montant = *in.Montant
	}
	if in.Date != nil {
		p.Date = *in.Date
	}
	if in.Moyen != nil {
		p.Moyen = *in.Moyen
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Faculte != nil {
		p.Faculte = *in.Faculte
		if p.Faculte == "" {
			p.Faculte = FaculteUnspecified
		}
	}
	if in.AttachmentPath != nil {
		p.AttachmentPath = *in.AttachmentPath
	}
	if in.Metadata != nil {
		p.Metadata = in.Metadata
	}
	p.UpdatedAt = time.Now()

	if err := p.Validate(ctx); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

// Delete permanently removes a payment. Deleting an absent id reports
// NOT_FOUND; this subsystem chose the explicit variant over silent no-op
// and applies it consistently.
func (s *Service) Delete(ctx context.Context, rawID string) error {
	paymentID, err := id.Parse(rawID)
	if err != nil {
		return apperror.NewInvalidIdentifier(rawID)
	}
	return s.repo.Delete(ctx, paymentID)
}
