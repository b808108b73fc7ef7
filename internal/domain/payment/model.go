// Package payment provides the tuition payment record lifecycle:
// creation with sequential reference-number allocation, queries,
// updates and deletion.
package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"encaissement/internal/core/apperror"
	"encaissement/internal/core/id"
)

// Method is the payment method.
type Method string

const (
	MethodCash     Method = "cash"
	MethodCard     Method = "card"
	MethodTransfer Method = "transfer"
)

// Valid reports whether m is a known payment method. The empty method is
// valid: moyen is optional.
func (m Method) Valid() bool {
	switch m {
	case "", MethodCash, MethodCard, MethodTransfer:
		return true
	}
	return false
}

// FaculteUnspecified is the sentinel stored when no faculty is given.
const FaculteUnspecified = "unspecified"

// Payment is a recorded tuition payment.
//
// RefID is the human-facing reference number. It is assigned exactly once
// at creation by the sequence allocator, is unique across all payments,
// and is never altered by updates.
type Payment struct {
	ID             id.ID           `db:"id" json:"id"`
	RefID          int64           `db:"ref_id" json:"refId"`
	Client         string          `db:"client" json:"client"`
	Montant        decimal.Decimal `db:"montant" json:"montant"`
	Date           time.Time       `db:"date" json:"date"`
	Moyen          Method          `db:"moyen" json:"moyen,omitempty"`
	Description    string          `db:"description" json:"description,omitempty"`
	Faculte        string          `db:"faculte" json:"faculte"`
	AttachmentPath string          `db:"attachment_path" json:"attachmentPath,omitempty"`
	OwnerUserID    id.ID           `db:"owner_user_id" json:"ownerUserId"`

	// Metadata is an opaque bag for caller-supplied extra attributes.
	// Replaces the loose schema of the legacy system with a closed record
	// shape plus an explicit overflow area.
	Metadata map[string]any `db:"metadata" json:"metadata,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// New creates a payment with a generated ID and defaults applied.
// RefID is left at zero; the service stamps it during Create.
func New(client string, montant decimal.Decimal, ownerUserID id.ID) *Payment {
	now := time.Now()
	return &Payment{
		ID:          id.New(),
		Client:      client,
		Montant:     montant,
		Date:        now,
		Faculte:     FaculteUnspecified,
		OwnerUserID: ownerUserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate checks payment invariants.
func (p *Payment) Validate(ctx context.Context) error {
	if p.Client == "" {
		return apperror.NewValidation("client is required").
			WithDetail("field", "client")
	}
	if p.Montant.IsZero() || p.Montant.IsNegative() {
		return apperror.NewValidation("montant must be a positive amount").
			WithDetail("field", "montant")
	}
	if id.IsNil(p.OwnerUserID) {
		return apperror.NewValidation("owner user is required").
			WithDetail("field", "ownerUserId")
	}
	if !p.Moyen.Valid() {
		return apperror.NewValidation("unknown payment method").
			WithDetail("field", "moyen").
			WithDetail("value", string(p.Moyen))
	}
	return nil
}
