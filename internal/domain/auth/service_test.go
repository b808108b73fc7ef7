package auth

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"encaissement/internal/core/apperror"
	"encaissement/internal/core/id"
)

type memUserRepo struct {
	mu      sync.Mutex
	byID    map[id.ID]User
	byEmail map[string]id.ID
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: make(map[id.ID]User), byEmail: make(map[string]id.ID)}
}

func (r *memUserRepo) Create(ctx context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[user.ID] = *user
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *memUserRepo) GetByID(ctx context.Context, userID id.ID) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[userID]
	if !ok {
		return nil, apperror.NewNotFound("user", userID.String())
	}
	return &u, nil
}

// GetByEmail matches exactly, the way the SQL repo's WHERE email = $1 does.
func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.byEmail[email]
	if !ok {
		return nil, apperror.NewNotFound("user", email)
	}
	u := r.byID[userID]
	return &u, nil
}

func (r *memUserRepo) Update(ctx context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[user.ID] = *user
	return nil
}

func (r *memUserRepo) Exists(ctx context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byEmail[email]
	return ok, nil
}

type memTokenRepo struct {
	mu     sync.Mutex
	byHash map[string]RefreshToken
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{byHash: make(map[string]RefreshToken)}
}

func (r *memTokenRepo) SaveRefreshToken(ctx context.Context, token *RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byHash[token.TokenHash] = *token
	return nil
}

func (r *memTokenRepo) GetRefreshToken(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byHash[tokenHash]
	if !ok {
		return nil, apperror.NewNotFound("refresh token", tokenHash)
	}
	return &t, nil
}

func (r *memTokenRepo) RevokeRefreshToken(ctx context.Context, tokenID id.ID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for hash, t := range r.byHash {
		if t.ID == tokenID {
			delete(r.byHash, hash)
		}
	}
	return nil
}

func (r *memTokenRepo) RevokeAllUserTokens(ctx context.Context, userID id.ID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for hash, t := range r.byHash {
		if t.UserID == userID {
			delete(r.byHash, hash)
		}
	}
	return nil
}

func (r *memTokenRepo) CleanupExpiredTokens(ctx context.Context) (int, error) {
	return 0, nil
}

// passthroughTx runs the function without a real transaction.
type passthroughTx struct{}

func (passthroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestAuthService() (*Service, *memUserRepo) {
	users := newMemUserRepo()
	svc := NewService(
		users,
		newMemTokenRepo(),
		passthroughTx{},
		NewJWTService(DefaultJWTConfig("test-secret")),
		DefaultServiceConfig(),
	)
	return svc, users
}

func TestRegister_NormalizesEmail(t *testing.T) {
	svc, _ := newTestAuthService()

	user, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "  Tresorier@Univ.Example  ",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)
	assert.Equal(t, "tresorier@univ.example", user.Email)
	assert.Equal(t, RoleUser, user.Role)
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash, "password must be hashed")
}

func TestLogin_AcceptsRegistrationCasing(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{
		Email:    "Tresorier@Univ.Example",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)

	// The exact string the user registered with must log in, even though
	// storage holds the lowercased form.
	user, pair, err := svc.Login(ctx, Credentials{
		Email:    "Tresorier@Univ.Example",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)
	assert.Equal(t, "tresorier@univ.example", user.Email)
	assert.NotEmpty(t, pair.AccessToken)

	_, _, err = svc.Login(ctx, Credentials{
		Email:    "tresorier@univ.example",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)
}

func TestRegister_DuplicateDetectedAcrossCasing(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Email: "a@b.c", Password: "s3cret-pass"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterRequest{Email: " A@B.C ", Password: "s3cret-pass"})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeConflict, appErr.Code)
}

func TestRegister_ShortPasswordRejected(t *testing.T) {
	svc, _ := newTestAuthService()

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "a@b.c",
		Password: "short",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestRegister_DuplicateEmailRejected(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	req := RegisterRequest{Email: "a@b.c", Password: "s3cret-pass"}
	_, err := svc.Register(ctx, req)
	require.NoError(t, err)

	_, err = svc.Register(ctx, req)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeConflict, appErr.Code)
}

func TestLogin_IssuesValidatableToken(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	registered, err := svc.Register(ctx, RegisterRequest{Email: "a@b.c", Password: "s3cret-pass"})
	require.NoError(t, err)

	user, pair, err := svc.Login(ctx, Credentials{Email: "a@b.c", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.Equal(t, "Bearer", pair.TokenType)

	jwtSvc := NewJWTService(DefaultJWTConfig("test-secret"))
	userCtx, err := jwtSvc.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.ID.String(), userCtx.UserID)
	assert.Equal(t, "a@b.c", userCtx.Email)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Email: "a@b.c", Password: "s3cret-pass"})
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, Credentials{Email: "a@b.c", Password: "wrong-pass"})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeUnauthorized, appErr.Code)
}

func TestLogin_UnknownEmailSameError(t *testing.T) {
	svc, _ := newTestAuthService()

	_, _, err := svc.Login(context.Background(), Credentials{Email: "nobody@b.c", Password: "whatever1"})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeUnauthorized, appErr.Code)
	assert.Equal(t, "invalid credentials", appErr.Message)
}

func TestRefresh_RotatesToken(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Email: "a@b.c", Password: "s3cret-pass"})
	require.NoError(t, err)
	_, pair, err := svc.Login(ctx, Credentials{Email: "a@b.c", Password: "s3cret-pass"})
	require.NoError(t, err)

	next, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// The used token is revoked
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeUnauthorized, appErr.Code)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	jwtSvc := NewJWTService(DefaultJWTConfig("secret-one"))
	token, _, err := jwtSvc.GenerateAccessToken(id.New().String(), "a@b.c", RoleUser)
	require.NoError(t, err)

	other := NewJWTService(DefaultJWTConfig("secret-two"))
	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}
