package handler

import (
	"net/http"

	"github.com/formhub/backend/internal/application/files"
	"github.com/formhub/backend/internal/application/identity"
	"github.com/formhub/backend/internal/application/notification"
	"github.com/formhub/backend/internal/infrastructure/auth"
	"github.com/formhub/backend/internal/interfaces/http/dto"
	"github.com/formhub/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserHandler handles user management, avatars and notification settings
type UserHandler struct {
	BaseHandler
	store       files.Store
	revocations auth.RevocationStore
	config      identity.UserServiceConfig
	logger      *zap.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(store files.Store, revocations auth.RevocationStore, config identity.UserServiceConfig, logger *zap.Logger) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{
		store:       store,
		revocations: revocations,
		config:      config,
		logger:      logger,
	}
}

// session resolves the actor and builds the request's user service
func (h *UserHandler) session(c *gin.Context) (*identity.UserService, uuid.UUID, bool) {
	actorID, ok := h.actorID(c)
	if !ok {
		return nil, actorID, false
	}
	rc, ok := h.requestContext(c)
	if !ok {
		return nil, actorID, false
	}
	return identity.NewUserService(rc, h.store, h.revocations, h.config, h.logger), actorID, true
}

// Create handles POST /users
func (h *UserHandler) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	svc, actorID, ok := h.session(c)
	if !ok {
		return
	}

	user, err := svc.Create(c.Request.Context(), actorID, identity.CreateUserInput{
		Name:    req.Name,
		Email:   req.Email,
		IsAdmin: req.IsAdmin,
		AdminID: req.AdminID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, identity.ToUserInfo(user))
}

// List handles GET /users. Super admins see everyone, admins see their own users.
func (h *UserHandler) List(c *gin.Context) {
	page, ok := h.page(c, 100)
	if !ok {
		return
	}
	svc, actorID, ok := h.session(c)
	if !ok {
		return
	}

	users, err := svc.List(c.Request.Context(), actorID, page)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, identity.ToUserInfos(users))
}

// ListByAdmin handles GET /admin/:id/users
func (h *UserHandler) ListByAdmin(c *gin.Context) {
	adminID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	page, ok := h.page(c, 100)
	if !ok {
		return
	}
	svc, actorID, ok := h.session(c)
	if !ok {
		return
	}

	users, err := svc.ListByAdmin(c.Request.Context(), actorID, adminID, page)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, identity.ToUserInfos(users))
}

// Get handles GET /users/:id
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	svc, actorID, ok := h.session(c)
	if !ok {
		return
	}

	user, err := svc.Get(c.Request.Context(), actorID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, identity.ToUserInfo(user))
}

// Update handles PUT /users/:id
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	svc, actorID, ok := h.session(c)
	if !ok {
		return
	}

	user, err := svc.Update(c.Request.Context(), actorID, id, identity.UpdateUserInput{
		Name:    req.Name,
		Email:   req.Email,
		IsAdmin: req.IsAdmin,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, identity.ToUserInfo(user))
}

// Delete handles DELETE /users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	svc, actorID, ok := h.session(c)
	if !ok {
		return
	}

	if err := svc.Delete(c.Request.Context(), actorID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, MessageResponse{Message: "User deleted successfully"})
}

// UploadAvatar handles POST /users/:id/avatar with a multipart "file" part
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		if middleware.IsBodyTooLarge(err) {
			h.HandleError(c, err)
			return
		}
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidationRequired, "Avatar file is required")
		return
	}
	body, err := header.Open()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	defer func() { _ = body.Close() }()

	svc, actorID, ok := h.session(c)
	if !ok {
		return
	}
	user, err := svc.UploadAvatar(c.Request.Context(), actorID, id, identity.AvatarUpload{
		Filename: header.Filename,
		Size:     header.Size,
		Body:     body,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, identity.ToUserInfo(user))
}

// GetNotificationSettings handles GET /users/:id/notification-settings
func (h *UserHandler) GetNotificationSettings(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}
	rc, ok := h.requestContext(c)
	if !ok {
		return
	}

	settings, err := notification.NewSettingsService(rc, h.logger).Get(c.Request.Context(), actorID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, settings)
}

// UpdateNotificationSettings handles PUT /users/:id/notification-settings
func (h *UserHandler) UpdateNotificationSettings(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req NotificationSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}
	rc, ok := h.requestContext(c)
	if !ok {
		return
	}

	settings, err := notification.NewSettingsService(rc, h.logger).Update(c.Request.Context(), actorID, id, notification.UpdateSettingsInput{
		TelegramChatID:               req.TelegramChatID,
		TelegramNotificationsEnabled: req.TelegramNotificationsEnabled,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, settings)
}
