package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/formhub/backend/internal/infrastructure/auth"
	"github.com/formhub/backend/internal/infrastructure/config"
	"github.com/formhub/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-secret-key-at-least-32-chars"

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                testJWTSecret,
		AccessTokenExpiration: 15 * time.Minute,
		Issuer:                "formhub-test",
	})
}

func newTestToken(t *testing.T, svc *auth.JWTService) (string, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	token, err := svc.GenerateAccessToken(auth.TokenSubject{UserID: userID, Email: "a@example.com", IsAdmin: true})
	require.NoError(t, err)
	return token.Token, userID
}

func serveWithAuth(router *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if header != "" {
		req.Header.Set(AuthHeaderKey, header)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

func newJWTRouter(cfg JWTMiddlewareConfig) *gin.Engine {
	router := gin.New()
	router.Use(JWTAuthMiddlewareWithConfig(cfg))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetJWTUserID(c)})
	})
	return router
}

func TestJWTAuthMiddleware_ValidToken(t *testing.T) {
	svc := newTestJWTService()
	token, userID := newTestToken(t, svc)

	router := gin.New()
	router.Use(JWTAuthMiddleware(svc))
	router.GET("/test", func(c *gin.Context) {
		claims := GetJWTClaims(c)
		require.NotNil(t, claims)
		assert.True(t, claims.IsAdmin)
		id, ok := GetJWTUserUUID(c)
		assert.True(t, ok)
		assert.Equal(t, userID, id)
		c.Status(http.StatusOK)
	})

	w := serveWithAuth(router, "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTAuthMiddleware_SchemeIsCaseInsensitive(t *testing.T) {
	svc := newTestJWTService()
	token, _ := newTestToken(t, svc)

	w := serveWithAuth(newJWTRouter(JWTMiddlewareConfig{JWTService: svc}), "bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTAuthMiddleware_Rejections(t *testing.T) {
	svc := newTestJWTService()
	router := newJWTRouter(JWTMiddlewareConfig{JWTService: svc})

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		UserID: uuid.NewString(),
	}).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", dto.ErrCodeTokenInvalid},
		{"basic scheme", "Basic dXNlcjpwYXNz", dto.ErrCodeTokenInvalid},
		{"empty token", "Bearer ", dto.ErrCodeTokenInvalid},
		{"garbage token", "Bearer not.a.token", dto.ErrCodeTokenInvalid},
		{"expired token", "Bearer " + expired, dto.ErrCodeTokenExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serveWithAuth(router, tt.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

func TestJWTAuthMiddleware_RevokedToken(t *testing.T) {
	svc := newTestJWTService()
	token, _ := newTestToken(t, svc)
	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)

	store := auth.NewMemoryRevocationStore()
	require.NoError(t, store.RevokeToken(context.Background(), claims.ID, time.Hour))

	w := serveWithAuth(newJWTRouter(JWTMiddlewareConfig{JWTService: svc, Revocations: store}), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, dto.ErrCodeTokenInvalid, errorCode(t, w))
}

func TestJWTAuthMiddleware_UserTokensRevoked(t *testing.T) {
	svc := newTestJWTService()
	token, userID := newTestToken(t, svc)

	store := auth.NewMemoryRevocationStore()
	store.SetClock(func() time.Time { return time.Now().Add(2 * time.Second) })
	require.NoError(t, store.RevokeUserTokens(context.Background(), userID.String(), time.Hour))

	w := serveWithAuth(newJWTRouter(JWTMiddlewareConfig{JWTService: svc, Revocations: store}), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

type failingRevocations struct{ auth.RevocationStore }

func (failingRevocations) IsRevoked(context.Context, string) (bool, error) {
	return false, assert.AnError
}

func (failingRevocations) IsUserTokenRevoked(context.Context, string, time.Time) (bool, error) {
	return false, assert.AnError
}

func TestJWTAuthMiddleware_RevocationOutageFailsOpen(t *testing.T) {
	svc := newTestJWTService()
	token, _ := newTestToken(t, svc)

	w := serveWithAuth(newJWTRouter(JWTMiddlewareConfig{JWTService: svc, Revocations: failingRevocations{}}), "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTAuthMiddleware_OnError(t *testing.T) {
	called := false
	router := newJWTRouter(JWTMiddlewareConfig{
		JWTService: newTestJWTService(),
		OnError: func(c *gin.Context, err error) {
			called = true
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
			c.AbortWithStatus(http.StatusTeapot)
		},
	})

	w := serveWithAuth(router, "")
	assert.True(t, called)
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestGetJWTHelpers_NotAuthenticated(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.Nil(t, GetJWTClaims(c))
	assert.Empty(t, GetJWTUserID(c))
	_, ok := GetJWTUserUUID(c)
	assert.False(t, ok)
}
