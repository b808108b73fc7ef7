package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"encaissement/internal/domain/student"
)

// --- Request DTOs ---

// CreateStudentRequest for enrolling a student.
type CreateStudentRequest struct {
	Nom       string           `json:"nom" binding:"required"`
	Prenom    string           `json:"prenom" binding:"required"`
	Faculte   string           `json:"faculte" binding:"required"`
	Email     string           `json:"email" binding:"required,email"`
	Telephone string           `json:"telephone"`
	Frais     *decimal.Decimal `json:"frais"`
}

// ToCreateInput converts to the domain input.
func (r *CreateStudentRequest) ToCreateInput() student.CreateInput {
	return student.CreateInput{
		Nom:       r.Nom,
		Prenom:    r.Prenom,
		Faculte:   student.Faculte(r.Faculte),
		Email:     r.Email,
		Telephone: r.Telephone,
		Frais:     r.Frais,
	}
}

// UpdateStudentRequest carries a partial update.
type UpdateStudentRequest struct {
	Nom       *string          `json:"nom"`
	Prenom    *string          `json:"prenom"`
	Faculte   *string          `json:"faculte"`
	Email     *string          `json:"email"`
	Telephone *string          `json:"telephone"`
	Frais     *decimal.Decimal `json:"frais"`
}

// ToUpdateInput converts to the domain input.
func (r *UpdateStudentRequest) ToUpdateInput() student.UpdateInput {
	in := student.UpdateInput{
		Nom:       r.Nom,
		Prenom:    r.Prenom,
		Email:     r.Email,
		Telephone: r.Telephone,
		Frais:     r.Frais,
	}
	if r.Faculte != nil {
		f := student.Faculte(*r.Faculte)
		in.Faculte = &f
	}
	return in
}

// StudentListQuery narrows student listings.
type StudentListQuery struct {
	Faculte string `form:"faculte"`
	Search  string `form:"search"`
	Limit   int    `form:"limit" binding:"omitempty,min=1,max=200"`
	Offset  int    `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter converts to the domain filter.
func (q *StudentListQuery) ToFilter() student.ListFilter {
	return student.ListFilter{
		Faculte: student.Faculte(q.Faculte),
		Search:  q.Search,
		Limit:   q.Limit,
		Offset:  q.Offset,
	}
}

// --- Response DTOs ---

// StudentResponse represents a student in API responses.
type StudentResponse struct {
	ID        string          `json:"id"`
	Nom       string          `json:"nom"`
	Prenom    string          `json:"prenom"`
	Faculte   string          `json:"faculte"`
	Email     string          `json:"email"`
	Telephone string          `json:"telephone,omitempty"`
	Frais     decimal.Decimal `json:"frais"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// FromStudent creates StudentResponse from a domain student.
func FromStudent(s *student.Student) StudentResponse {
	return StudentResponse{
		ID:        s.ID.String(),
		Nom:       s.Nom,
		Prenom:    s.Prenom,
		Faculte:   string(s.Faculte),
		Email:     s.Email,
		Telephone: s.Telephone,
		Frais:     s.Frais,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// FromStudents converts a slice of domain students.
func FromStudents(items []student.Student) []StudentResponse {
	out := make([]StudentResponse, 0, len(items))
	for i := range items {
		out = append(out, FromStudent(&items[i]))
	}
	return out
}
