package handler

import (
	"github.com/formhub/backend/internal/application/identity"
	"github.com/formhub/backend/internal/infrastructure/auth"
	"github.com/formhub/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler handles registration, login and credential changes
type AuthHandler struct {
	BaseHandler
	tokens      *auth.JWTService
	revocations auth.RevocationStore
	logger      *zap.Logger
}

// NewAuthHandler creates a new auth handler. revocations may be nil.
func NewAuthHandler(tokens *auth.JWTService, revocations auth.RevocationStore, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		tokens:      tokens,
		revocations: revocations,
		logger:      logger,
	}
}

func (h *AuthHandler) service(c *gin.Context) (*identity.AuthService, bool) {
	rc, ok := h.requestContext(c)
	if !ok {
		return nil, false
	}
	return identity.NewAuthService(rc, h.tokens, h.revocations, h.logger), true
}

// Register handles POST /auth/register.
// Administrators are created unapproved and receive no token.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	svc, ok := h.service(c)
	if !ok {
		return
	}

	result, err := svc.Register(c.Request.Context(), identity.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		IsAdmin:  req.IsAdmin,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	svc, ok := h.service(c)
	if !ok {
		return
	}

	result, err := svc.Login(c.Request.Context(), identity.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}
	svc, ok := h.service(c)
	if !ok {
		return
	}

	user, err := svc.CurrentUser(c.Request.Context(), actorID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, identity.ToUserInfo(user))
}

// ChangePassword handles POST /auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	svc, ok := h.service(c)
	if !ok {
		return
	}

	err := svc.ChangePassword(c.Request.Context(), actorID, identity.ChangePasswordInput{
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, MessageResponse{Message: "Password changed successfully"})
}

// Logout handles POST /auth/logout by revoking the presented token
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetJWTClaims(c)
	if claims == nil {
		h.Unauthorized(c, "Could not validate credentials")
		return
	}
	svc, ok := h.service(c)
	if !ok {
		return
	}

	if err := svc.Logout(c.Request.Context(), claims); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, MessageResponse{Message: "Logged out successfully"})
}
