package auth_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"encaissement/internal/core/apperror"
	"encaissement/internal/core/id"
	"encaissement/internal/domain/auth"
	"encaissement/internal/infrastructure/storage/postgres"
)

// TokenRepo implements auth.TokenRepository.
type TokenRepo struct {
	txManager *postgres.TxManager
}

// NewTokenRepo creates a new token repository.
func NewTokenRepo(txManager *postgres.TxManager) *TokenRepo {
	return &TokenRepo{txManager: txManager}
}

// SaveRefreshToken saves a refresh token.
func (r *TokenRepo) SaveRefreshToken(ctx context.Context, token *auth.RefreshToken) error {
	q := r.txManager.GetQuerier(ctx)

	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := q.Exec(ctx, query,
		token.ID, token.UserID, token.TokenHash, token.ExpiresAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}

	return nil
}

// GetRefreshToken retrieves refresh token by hash.
func (r *TokenRepo) GetRefreshToken(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	q := r.txManager.GetQuerier(ctx)

	query := `
		SELECT id, user_id, token_hash, expires_at, created_at, revoked_at, revoked_reason
		FROM refresh_tokens
		WHERE token_hash = $1
	`

	var token auth.RefreshToken
	err := q.QueryRow(ctx, query, tokenHash).Scan(
		&token.ID, &token.UserID, &token.TokenHash,
		&token.ExpiresAt, &token.CreatedAt,
		&token.RevokedAt, &token.RevokedReason,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("refresh token", "")
	}
	if err != nil {
		return nil, fmt.Errorf("query refresh token: %w", err)
	}

	return &token, nil
}

// RevokeRefreshToken revokes a refresh token.
func (r *TokenRepo) RevokeRefreshToken(ctx context.Context, tokenID id.ID, reason string) error {
	q := r.txManager.GetQuerier(ctx)

	query := `
		UPDATE refresh_tokens
		SET revoked_at = NOW(), revoked_reason = $2
		WHERE id = $1 AND revoked_at IS NULL
	`

	if _, err := q.Exec(ctx, query, tokenID, reason); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	return nil
}

// RevokeAllUserTokens revokes all tokens for a user.
func (r *TokenRepo) RevokeAllUserTokens(ctx context.Context, userID id.ID, reason string) error {
	q := r.txManager.GetQuerier(ctx)

	query := `
		UPDATE refresh_tokens
		SET revoked_at = NOW(), revoked_reason = $2
		WHERE user_id = $1 AND revoked_at IS NULL
	`

	if _, err := q.Exec(ctx, query, userID, reason); err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}

	return nil
}

// CleanupExpiredTokens removes expired tokens.
func (r *TokenRepo) CleanupExpiredTokens(ctx context.Context) (int, error) {
	q := r.txManager.GetQuerier(ctx)

	query := `DELETE FROM refresh_tokens WHERE expires_at < NOW()`

	result, err := q.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired tokens: %w", err)
	}

	return int(result.RowsAffected()), nil
}

// Ensure interface compliance
var _ auth.TokenRepository = (*TokenRepo)(nil)
