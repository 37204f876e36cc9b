package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/formhub/backend/internal/application/uow"
	"github.com/formhub/backend/internal/domain/identity"
	"github.com/formhub/backend/internal/domain/shared"
	"github.com/formhub/backend/internal/infrastructure/auth"
	"github.com/formhub/backend/internal/infrastructure/config"
	"github.com/formhub/backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-at-least-32-bytes-long",
		AccessTokenExpiration: time.Hour,
		Issuer:                "formhub-test",
	})
}

func domainCode(t *testing.T, err error) string {
	t.Helper()
	var de *shared.DomainError
	require.True(t, errors.As(err, &de), "expected a domain error, got %v", err)
	return de.Code
}

func TestAuthService_Register(t *testing.T) {
	env := testutil.NewEnv(t)
	tokens := newTestJWTService()
	ctx := context.Background()

	t.Run("regular user gets a token", func(t *testing.T) {
		rc := env.Begin(t)
		svc := NewAuthService(rc, tokens, nil, zaptest.NewLogger(t))

		result, err := svc.Register(ctx, RegisterInput{Email: "User@Example.com", Password: "secret123", Name: "User"})
		require.NoError(t, err)
		env.Commit(t, rc)

		assert.NotEmpty(t, result.AccessToken)
		assert.Equal(t, "bearer", result.TokenType)
		require.NotNil(t, result.ExpiresAt)
		assert.Equal(t, "user@example.com", result.User.Email)
		assert.True(t, result.User.IsApproved)

		claims, err := tokens.ValidateAccessToken(result.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, result.User.ID.String(), claims.UserID)
	})

	t.Run("admin waits for approval", func(t *testing.T) {
		rc := env.Begin(t)
		svc := NewAuthService(rc, tokens, nil, zaptest.NewLogger(t))

		result, err := svc.Register(ctx, RegisterInput{Email: "admin@example.com", Password: "secret123", Name: "Admin", IsAdmin: true})
		require.NoError(t, err)
		env.Commit(t, rc)

		assert.Empty(t, result.AccessToken)
		assert.Nil(t, result.ExpiresAt)
		assert.True(t, result.User.IsAdmin)
		assert.False(t, result.User.IsApproved)
	})

	t.Run("duplicate email", func(t *testing.T) {
		rc := env.Begin(t)
		svc := NewAuthService(rc, tokens, nil, zaptest.NewLogger(t))

		_, err := svc.Register(ctx, RegisterInput{Email: "USER@example.com", Password: "secret123", Name: "Again"})
		assert.ErrorIs(t, err, identity.ErrEmailTaken)
		require.NoError(t, rc.Session.Rollback())
	})

	t.Run("short password", func(t *testing.T) {
		rc := env.Begin(t)
		svc := NewAuthService(rc, tokens, nil, zaptest.NewLogger(t))

		_, err := svc.Register(ctx, RegisterInput{Email: "short@example.com", Password: "123", Name: "Short"})
		assert.Equal(t, "INVALID_PASSWORD", domainCode(t, err))
		require.NoError(t, rc.Session.Rollback())
	})
}

func TestAuthService_Login(t *testing.T) {
	env := testutil.NewEnv(t)
	tokens := newTestJWTService()
	ctx := context.Background()

	admin := env.CreateAdmin(t, "admin@example.com")
	pending, err := identity.NewUser("pending@example.com", "Pending", "secret123", true)
	require.NoError(t, err)
	respondent, err := identity.NewRespondent("resp@example.com", "Respondent", &admin.ID)
	require.NoError(t, err)
	env.Seed(t, func(rc *uow.RequestContext) {
		require.NoError(t, rc.Session.Users().Create(ctx, pending))
		require.NoError(t, rc.Session.Users().Create(ctx, respondent))
	})

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"approved admin", "Admin@Example.com", "secret123", nil},
		{"wrong password", "admin@example.com", "wrong-password", identity.ErrInvalidCredentials},
		{"unknown email", "nobody@example.com", "secret123", identity.ErrInvalidCredentials},
		{"pending admin", "pending@example.com", "secret123", identity.ErrPendingApproval},
		{"respondent without password", "resp@example.com", "", identity.ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := env.Begin(t)
			defer func() { _ = rc.Session.Close() }()
			svc := NewAuthService(rc, tokens, nil, zaptest.NewLogger(t))

			result, err := svc.Login(ctx, LoginInput{Email: tt.email, Password: tt.password})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, result.AccessToken)
			assert.Equal(t, admin.ID, result.User.ID)
		})
	}
}

func TestAuthService_ChangePassword(t *testing.T) {
	env := testutil.NewEnv(t)
	tokens := newTestJWTService()
	revocations := auth.NewMemoryRevocationStore()
	ctx := context.Background()
	admin := env.CreateAdmin(t, "admin@example.com")

	t.Run("wrong current password", func(t *testing.T) {
		rc := env.Begin(t)
		defer func() { _ = rc.Session.Close() }()
		svc := NewAuthService(rc, tokens, revocations, zaptest.NewLogger(t))

		err := svc.ChangePassword(ctx, admin.ID, ChangePasswordInput{CurrentPassword: "nope", NewPassword: "newsecret123"})
		assert.Equal(t, "INVALID_PASSWORD", domainCode(t, err))
	})

	t.Run("unknown user is unauthorized", func(t *testing.T) {
		rc := env.Begin(t)
		defer func() { _ = rc.Session.Close() }()
		svc := NewAuthService(rc, tokens, revocations, zaptest.NewLogger(t))

		err := svc.ChangePassword(ctx, uuid.New(), ChangePasswordInput{CurrentPassword: "secret123", NewPassword: "newsecret123"})
		assert.ErrorIs(t, err, shared.ErrUnauthorized)
	})

	t.Run("success revokes older tokens", func(t *testing.T) {
		rc := env.Begin(t)
		svc := NewAuthService(rc, tokens, revocations, zaptest.NewLogger(t))

		require.NoError(t, svc.ChangePassword(ctx, admin.ID, ChangePasswordInput{CurrentPassword: "secret123", NewPassword: "newsecret123"}))
		env.Commit(t, rc)
		require.NoError(t, rc.Session.Close())

		revoked, err := revocations.IsUserTokenRevoked(ctx, admin.ID.String(), time.Now().Add(-time.Minute))
		require.NoError(t, err)
		assert.True(t, revoked)

		rc = env.Begin(t)
		defer func() { _ = rc.Session.Close() }()
		_, err = NewAuthService(rc, tokens, revocations, nil).Login(ctx, LoginInput{Email: "admin@example.com", Password: "newsecret123"})
		assert.NoError(t, err)
	})
}

func TestAuthService_Logout(t *testing.T) {
	env := testutil.NewEnv(t)
	tokens := newTestJWTService()
	revocations := auth.NewMemoryRevocationStore()
	ctx := context.Background()
	admin := env.CreateAdmin(t, "admin@example.com")

	token, err := tokens.GenerateAccessToken(auth.TokenSubject{UserID: admin.ID, Email: admin.Email, IsAdmin: true})
	require.NoError(t, err)
	claims, err := tokens.ValidateAccessToken(token.Token)
	require.NoError(t, err)

	rc := env.Begin(t)
	svc := NewAuthService(rc, tokens, revocations, zaptest.NewLogger(t))
	require.NoError(t, svc.Logout(ctx, claims))

	revoked, err := revocations.IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	assert.NoError(t, NewAuthService(rc, tokens, nil, nil).Logout(ctx, claims), "logout without a store is a no-op")
}
