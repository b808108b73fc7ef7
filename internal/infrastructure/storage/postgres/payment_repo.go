package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"encaissement/internal/core/apperror"
	"encaissement/internal/core/id"
	"encaissement/internal/domain/payment"
)

// Compile-time check.
var _ payment.Repository = (*PaymentRepo)(nil)

var paymentCols = []string{
	"id", "ref_id", "client", "montant", "date", "moyen", "description",
	"faculte", "attachment_path", "owner_user_id", "metadata",
	"created_at", "updated_at",
}

// PaymentRepo provides PostgreSQL storage for payment records.
type PaymentRepo struct {
	txManager *TxManager
}

// NewPaymentRepo creates a new payment repository.
func NewPaymentRepo(txManager *TxManager) *PaymentRepo {
	return &PaymentRepo{txManager: txManager}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *PaymentRepo) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *PaymentRepo) baseSelect() squirrel.SelectBuilder {
	return r.Builder().Select(paymentCols...).From("payments")
}

// Create inserts a new payment. The record must already carry its ref_id;
// the unique index on ref_id is the last line of defense against an
// allocator bug and fires as DUPLICATE_REFERENCE.
func (r *PaymentRepo) Create(ctx context.Context, p *payment.Payment) error {
	q := r.Builder().
		Insert("payments").
		SetMap(map[string]any{
			"id":              p.ID,
			"ref_id":          p.RefID,
			"client":          p.Client,
			"montant":         p.Montant,
			"date":            p.Date,
			"moyen":           string(p.Moyen),
			"description":     p.Description,
			"faculte":         p.Faculte,
			"attachment_path": p.AttachmentPath,
			"owner_user_id":   p.OwnerUserID,
			"metadata":        p.Metadata,
			"created_at":      p.CreatedAt,
			"updated_at":      p.UpdatedAt,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err, "ref_id") {
			return apperror.NewDuplicateReference(p.RefID).WithCause(err)
		}
		return fmt.Errorf("insert payment: %w", err)
	}

	return nil
}

// GetByID retrieves a payment by record id.
func (r *PaymentRepo) GetByID(ctx context.Context, paymentID id.ID) (*payment.Payment, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"id": paymentID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p payment.Payment
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("payment", paymentID.String())
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}

	return &p, nil
}

// Update replaces the mutable fields of a payment.
// id and ref_id are never part of the SET clause.
func (r *PaymentRepo) Update(ctx context.Context, p *payment.Payment) error {
	q := r.Builder().
		Update("payments").
		SetMap(map[string]any{
			"client":          p.Client,
			"montant":         p.Montant,
			"date":            p.Date,
			"moyen":           string(p.Moyen),
			"description":     p.Description,
			"faculte":         p.Faculte,
			"attachment_path": p.AttachmentPath,
			"metadata":        p.Metadata,
			"updated_at":      p.UpdatedAt,
		}).
		Where(squirrel.Eq{"id": p.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("payment", p.ID.String())
	}

	return nil
}

// Delete permanently removes a payment.
func (r *PaymentRepo) Delete(ctx context.Context, paymentID id.ID) error {
	q := r.Builder().
		Delete("payments").
		Where(squirrel.Eq{"id": paymentID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("payment", paymentID.String())
	}

	return nil
}

// List retrieves payments with optional ordering and limit.
func (r *PaymentRepo) List(ctx context.Context, opts payment.ListOptions) ([]payment.Payment, error) {
	q := r.baseSelect()
	if opts.SortByDateDesc {
		q = q.OrderBy("date DESC")
	}
	if opts.Limit > 0 {
		q = q.Limit(uint64(opts.Limit))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []payment.Payment
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	return out, nil
}

// ListByUser retrieves payments recorded by the given user, newest first.
func (r *PaymentRepo) ListByUser(ctx context.Context, userID id.ID) ([]payment.Payment, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"owner_user_id": userID}).
		OrderBy("date DESC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []payment.Payment
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list payments by user: %w", err)
	}

	return out, nil
}

// isUniqueViolation reports whether err is a unique constraint violation
// whose constraint name mentions the given column.
func isUniqueViolation(err error, column string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, column)
}
