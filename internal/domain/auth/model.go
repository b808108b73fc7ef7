// Package auth provides authentication for payment-recording users.
package auth

import (
	"context"
	"strings"
	"time"

	"encaissement/internal/core/apperror"
	"encaissement/internal/core/id"
)

// Roles known to the backend.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a system user who records payments.
type User struct {
	ID           id.ID      `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         string     `db:"role" json:"role"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// NormalizeEmail lowercases and trims an email address. Storage matches
// emails exactly, so every lookup must normalize the same way NewUser does.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewUser creates a new user with normalized email and the default role.
func NewUser(email, passwordHash string) *User {
	now := time.Now()
	return &User{
		ID:           id.New(),
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		Role:         RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Validate checks user invariants.
func (u *User) Validate(ctx context.Context) error {
	if u.Email == "" {
		return apperror.NewValidation("email is required").WithDetail("field", "email")
	}
	return nil
}

// RecordSuccessfulLogin stamps the login time.
func (u *User) RecordSuccessfulLogin() {
	now := time.Now()
	u.LastLoginAt = &now
}

// RefreshToken represents a refresh token for JWT refresh.
type RefreshToken struct {
	ID            id.ID      `db:"id"`
	UserID        id.ID      `db:"user_id"`
	TokenHash     string     `db:"token_hash"`
	ExpiresAt     time.Time  `db:"expires_at"`
	CreatedAt     time.Time  `db:"created_at"`
	RevokedAt     *time.Time `db:"revoked_at"`
	RevokedReason string     `db:"revoked_reason"`
}

// IsValid checks if refresh token is valid.
func (t *RefreshToken) IsValid() bool {
	if t.RevokedAt != nil {
		return false
	}
	return time.Now().Before(t.ExpiresAt)
}

// TokenPair contains access and refresh tokens.
type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	TokenType    string    `json:"tokenType"`
}

// Credentials for login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest for user registration.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
