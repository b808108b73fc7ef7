package student

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"encaissement/internal/core/apperror"
	"encaissement/internal/core/id"
	"encaissement/pkg/logger"
)

// Service provides student catalog operations.
type Service struct {
	repo Repository
}

// NewService creates a new student service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateInput carries the fields accepted at student creation.
type CreateInput struct {
	Nom       string
	Prenom    string
	Faculte   Faculte
	Email     string
	Telephone string

	// Frais overrides the faculty's default tuition when non-nil.
	Frais *decimal.Decimal
}

// Create registers a new student.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Student, error) {
	st := NewStudent(in.Nom, in.Prenom, in.Faculte, in.Email)
	st.Telephone = in.Telephone
	if in.Frais != nil {
		st.Frais = *in.Frais
	}

	if err := st.Validate(ctx); err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByEmail(ctx, st.Email)
	if err != nil {
		return nil, fmt.Errorf("check email exists: %w", err)
	}
	if exists {
		return nil, apperror.NewDuplicate("student", "email", st.Email)
	}

	if err := s.repo.Create(ctx, st); err != nil {
		return nil, fmt.Errorf("create student: %w", err)
	}

	logger.Info(ctx, "student created", "id", st.ID, "faculte", st.Faculte)
	return st, nil
}

// Get retrieves a student by record id.
func (s *Service) Get(ctx context.Context, rawID string) (*Student, error) {
	studentID, err := id.Parse(rawID)
	if err != nil {
		return nil, apperror.NewInvalidIdentifier(rawID)
	}
	return s.repo.GetByID(ctx, studentID)
}

// List retrieves students matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Student, error) {
	return s.repo.List(ctx, filter)
}

// UpdateInput carries a partial field set for student updates.
type UpdateInput struct {
	Nom       *string
	Prenom    *string
	Faculte   *Faculte
	Email     *string
	Telephone *string
	Frais     *decimal.Decimal
}

// Update merges the given fields into an existing student. Changing the
// faculty without an explicit frais resets tuition to the faculty default.
func (s *Service) Update(ctx context.Context, rawID string, in UpdateInput) (*Student, error) {
	studentID, err := id.Parse(rawID)
	if err != nil {
		return nil, apperror.NewInvalidIdentifier(rawID)
	}

	st, err := s.repo.GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}

	if in.Nom != nil {
		st.Nom = *in.Nom
	}
	if in.Prenom != nil {
		st.Prenom = *in.Prenom
	}
	if in.Faculte != nil && *in.Faculte != st.Faculte {
		st.Faculte = *in.Faculte
		if in.Frais == nil {
			st.Frais = DefaultFrais(st.Faculte)
		}
	}
	if in.Email != nil {
		st.Email = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	if in.Telephone != nil {
		st.Telephone = *in.Telephone
	}
	if in.Frais != nil {
		st.Frais = *in.Frais
	}
	st.UpdatedAt = time.Now()

	if err := st.Validate(ctx); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, st); err != nil {
		return nil, err
	}

	return st, nil
}

// Delete removes a student from the catalog.
func (s *Service) Delete(ctx context.Context, rawID string) error {
	studentID, err := id.Parse(rawID)
	if err != nil {
		return apperror.NewInvalidIdentifier(rawID)
	}
	return s.repo.Delete(ctx, studentID)
}
