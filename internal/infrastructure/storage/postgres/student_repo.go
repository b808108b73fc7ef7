package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"encaissement/internal/core/apperror"
	"encaissement/internal/core/id"
	"encaissement/internal/domain/student"
)

var _ student.Repository = (*StudentRepo)(nil)

var studentCols = []string{
	"id", "nom", "prenom", "faculte", "email", "telephone", "frais",
	"created_at", "updated_at",
}

// StudentRepo provides PostgreSQL storage for the student catalog.
type StudentRepo struct {
	txManager *TxManager
}

// NewStudentRepo creates a new student repository.
func NewStudentRepo(txManager *TxManager) *StudentRepo {
	return &StudentRepo{txManager: txManager}
}

func (r *StudentRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *StudentRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder().Select(studentCols...).From("students")
}

// Create inserts a new student.
func (r *StudentRepo) Create(ctx context.Context, s *student.Student) error {
	q := r.builder().
		Insert("students").
		SetMap(map[string]any{
			"id":         s.ID,
			"nom":        s.Nom,
			"prenom":     s.Prenom,
			"faculte":    string(s.Faculte),
			"email":      s.Email,
			"telephone":  s.Telephone,
			"frais":      s.Frais,
			"created_at": s.CreatedAt,
			"updated_at": s.UpdatedAt,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err, "email") {
			return apperror.NewDuplicate("student", "email", s.Email).WithCause(err)
		}
		return fmt.Errorf("insert student: %w", err)
	}

	return nil
}

// GetByID retrieves a student by id.
func (r *StudentRepo) GetByID(ctx context.Context, studentID id.ID) (*student.Student, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"id": studentID}).
		Limit(1)

	return r.getOne(ctx, q, studentID.String())
}

// GetByEmail retrieves a student by normalized email.
func (r *StudentRepo) GetByEmail(ctx context.Context, email string) (*student.Student, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"email": email}).
		Limit(1)

	return r.getOne(ctx, q, email)
}

func (r *StudentRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (*student.Student, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var s student.Student
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &s, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("student", key)
		}
		return nil, fmt.Errorf("get student: %w", err)
	}

	return &s, nil
}

// Update replaces the mutable fields of a student.
func (r *StudentRepo) Update(ctx context.Context, s *student.Student) error {
	q := r.builder().
		Update("students").
		SetMap(map[string]any{
			"nom":        s.Nom,
			"prenom":     s.Prenom,
			"faculte":    string(s.Faculte),
			"email":      s.Email,
			"telephone":  s.Telephone,
			"frais":      s.Frais,
			"updated_at": s.UpdatedAt,
		}).
		Where(squirrel.Eq{"id": s.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		if isUniqueViolation(err, "email") {
			return apperror.NewDuplicate("student", "email", s.Email).WithCause(err)
		}
		return fmt.Errorf("update student: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("student", s.ID.String())
	}

	return nil
}

// Delete permanently removes a student.
func (r *StudentRepo) Delete(ctx context.Context, studentID id.ID) error {
	q := r.builder().
		Delete("students").
		Where(squirrel.Eq{"id": studentID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("student", studentID.String())
	}

	return nil
}

// List retrieves students matching the filter, ordered by name.
func (r *StudentRepo) List(ctx context.Context, filter student.ListFilter) ([]student.Student, error) {
	q := r.baseSelect().OrderBy("nom ASC", "prenom ASC")

	if filter.Faculte != "" {
		q = q.Where(squirrel.Eq{"faculte": string(filter.Faculte)})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"nom": pattern},
			squirrel.ILike{"prenom": pattern},
			squirrel.ILike{"email": pattern},
		})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []student.Student
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}

	return out, nil
}

// ExistsByEmail reports whether a student with the email exists.
func (r *StudentRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	sql := `SELECT EXISTS(SELECT 1 FROM students WHERE email = $1)`

	var exists bool
	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("check student email: %w", err)
	}

	return exists, nil
}
