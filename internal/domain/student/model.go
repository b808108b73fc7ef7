// Package student provides the student catalog.
package student

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"encaissement/internal/core/apperror"
	"encaissement/internal/core/id"
)

// Faculte is an institutional faculty.
type Faculte string

const (
	FaculteSciences     Faculte = "Sciences"
	FaculteInformatique Faculte = "Informatique"
	FaculteGestion      Faculte = "Gestion"
	FaculteLettres      Faculte = "Lettres"
	FaculteDroit        Faculte = "Droit"
	FaculteMedecine     Faculte = "Médecine"
)

// Faculties lists the known faculties.
var Faculties = []Faculte{
	FaculteSciences,
	FaculteInformatique,
	FaculteGestion,
	FaculteLettres,
	FaculteDroit,
	FaculteMedecine,
}

// Valid reports whether f is a known faculty.
func (f Faculte) Valid() bool {
	for _, known := range Faculties {
		if f == known {
			return true
		}
	}
	return false
}

// DefaultFrais returns the tuition due for a faculty.
func DefaultFrais(f Faculte) decimal.Decimal {
	switch f {
	case FaculteSciences:
		return decimal.NewFromInt(6000)
	case FaculteInformatique:
		return decimal.NewFromInt(8000)
	case FaculteGestion:
		return decimal.NewFromInt(5500)
	case FaculteLettres:
		return decimal.NewFromInt(4000)
	case FaculteDroit:
		return decimal.NewFromInt(5000)
	case FaculteMedecine:
		return decimal.NewFromInt(10000)
	}
	return decimal.Zero
}

// Student is an enrolled student.
type Student struct {
	ID        id.ID           `db:"id" json:"id"`
	Nom       string          `db:"nom" json:"nom"`
	Prenom    string          `db:"prenom" json:"prenom"`
	Faculte   Faculte         `db:"faculte" json:"faculte"`
	Email     string          `db:"email" json:"email"`
	Telephone string          `db:"telephone" json:"telephone,omitempty"`
	Frais     decimal.Decimal `db:"frais" json:"frais"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time       `db:"updated_at" json:"updatedAt"`
}

// NewStudent creates a student with generated ID, normalized email and the
// faculty's default tuition.
func NewStudent(nom, prenom string, faculte Faculte, email string) *Student {
	now := time.Now()
	return &Student{
		ID:        id.New(),
		Nom:       nom,
		Prenom:    prenom,
		Faculte:   faculte,
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Frais:     DefaultFrais(faculte),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks student invariants.
func (s *Student) Validate(ctx context.Context) error {
	if s.Nom == "" {
		return apperror.NewValidation("nom is required").WithDetail("field", "nom")
	}
	if s.Prenom == "" {
		return apperror.NewValidation("prenom is required").WithDetail("field", "prenom")
	}
	if !s.Faculte.Valid() {
		return apperror.NewValidation("unknown faculty").
			WithDetail("field", "faculte").
			WithDetail("value", string(s.Faculte))
	}
	if s.Email == "" {
		return apperror.NewValidation("email is required").WithDetail("field", "email")
	}
	if s.Frais.IsNegative() {
		return apperror.NewValidation("frais must not be negative").
			WithDetail("field", "frais")
	}
	return nil
}
