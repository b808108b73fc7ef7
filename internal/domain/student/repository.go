package student

import (
	"context"

	"encaissement/internal/core/id"
)

// ListFilter narrows student listings.
type ListFilter struct {
	// Faculte restricts results to one faculty when non-empty.
	Faculte Faculte

	// Search matches nom, prenom or email, case-insensitively.
	Search string

	Limit  int
	Offset int
}

// Repository defines student storage operations.
type Repository interface {
	Create(ctx context.Context, s *Student) error
	GetByID(ctx context.Context, studentID id.ID) (*Student, error)
	GetByEmail(ctx context.Context, email string) (*Student, error)
	Update(ctx context.Context, s *Student) error
	Delete(ctx context.Context, studentID id.ID) error
	List(ctx context.Context, filter ListFilter) ([]Student, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}
