package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"encaissement/internal/domain/payment"
)

// --- Request DTOs ---

// CreatePaymentRequest for recording a payment.
// The reference number is never part of the request; it is assigned
// server-side. RefID is accepted only on the import route.
type CreatePaymentRequest struct {
	Client      string          `json:"client" form:"client" binding:"required"`
	Montant     decimal.Decimal `json:"montant" form:"montant" binding:"required"`
	Date        *time.Time      `json:"date" form:"date"`
	Moyen       string          `json:"moyen" form:"moyen"`
	Description string          `json:"description" form:"description"`
	Faculte     string          `json:"faculte" form:"faculte"`
	Metadata    map[string]any  `json:"metadata"`
}

// ToCreateInput converts to the domain input.
func (r *CreatePaymentRequest) ToCreateInput() payment.CreateInput {
	return payment.CreateInput{
		Client:      r.Client,
		Montant:     r.Montant,
		Date:        r.Date,
		Moyen:       payment.Method(r.Moyen),
		Description: r.Description,
		Faculte:     r.Faculte,
		Metadata:    r.Metadata,
	}
}

// ImportPaymentRequest carries a record from a previous system, reference
// number included.
type ImportPaymentRequest struct {
	CreatePaymentRequest
	RefID int64 `json:"refId" binding:"required,min=1"`
}

// ToCreateInput converts to the domain input with the carried number.
func (r *ImportPaymentRequest) ToCreateInput() payment.CreateInput {
	in := r.CreatePaymentRequest.ToCreateInput()
	in.RefID = r.RefID
	return in
}

// UpdatePaymentRequest carries a partial update. Absent fields keep their
// stored values. A refId key in the payload is ignored.
type UpdatePaymentRequest struct {
	Client      *string          `json:"client"`
	Montant     *decimal.Decimal `json:"montant"`
	Date        *time.Time       `json:"date"`
	Moyen       *string          `json:"moyen"`
	Description *string          `json:"description"`
	Faculte     *string          `json:"faculte"`
	Metadata    map[string]any   `json:"metadata"`
}

// ToUpdateInput converts to the domain input.
func (r *UpdatePaymentRequest) ToUpdateInput() payment.UpdateInput {
	in := payment.UpdateInput{
		Client:      r.Client,
		Montant:     r.Montant,
		Date:        r.Date,
		Description: r.Description,
		Faculte:     r.Faculte,
		Metadata:    r.Metadata,
	}
	if r.Moyen != nil {
		m := payment.Method(*r.Moyen)
		in.Moyen = &m
	}
	return in
}

// --- Response DTOs ---

// PaymentResponse represents a payment in API responses.
type PaymentResponse struct {
	ID             string          `json:"id"`
	RefID          int64           `json:"refId"`
	Client         string          `json:"client"`
	Montant        decimal.Decimal `json:"montant"`
	Date           time.Time       `json:"date"`
	Moyen          string          `json:"moyen,omitempty"`
	Description    string          `json:"description,omitempty"`
	Faculte        string          `json:"faculte"`
	AttachmentPath string          `json:"pieceJoint,omitempty"`
	AttachmentURL  string          `json:"pieceJointUrl,omitempty"`
	OwnerUserID    string          `json:"utilisateurId"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// FromPayment creates PaymentResponse from a domain payment.
func FromPayment(p *payment.Payment) PaymentResponse {
	return PaymentResponse{
		ID:             p.ID.String(),
		RefID:          p.RefID,
		Client:         p.Client,
		Montant:        p.Montant,
		Date:           p.Date,
		Moyen:          string(p.Moyen),
		Description:    p.Description,
		Faculte:        p.Faculte,
		AttachmentPath: p.AttachmentPath,
		OwnerUserID:    p.OwnerUserID.String(),
		Metadata:       p.Metadata,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// FromPayments converts a slice of domain payments.
func FromPayments(items []payment.Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(items))
	for i := range items {
		out = append(out, FromPayment(&items[i]))
	}
	return out
}
