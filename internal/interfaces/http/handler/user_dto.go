package handler

import "github.com/google/uuid"

// CreateUserRequest is the body of POST /users
type CreateUserRequest struct {
	Name    string     `json:"name" binding:"required,max=255"`
	Email   string     `json:"email" binding:"omitempty,email,max=255"`
	IsAdmin bool       `json:"is_admin"`
	AdminID *uuid.UUID `json:"admin_id"`
}

// UpdateUserRequest is the body of PUT /users/:id. Omitted fields are unchanged.
type UpdateUserRequest struct {
	Name    *string `json:"name" binding:"omitempty,max=255"`
	Email   *string `json:"email" binding:"omitempty,email,max=255"`
	IsAdmin *bool   `json:"is_admin"`
}

// NotificationSettingsRequest is the body of PUT /users/:id/notification-settings
type NotificationSettingsRequest struct {
	TelegramChatID               *string `json:"telegram_chat_id" binding:"omitempty,max=255"`
	TelegramNotificationsEnabled *bool   `json:"telegram_notifications_enabled"`
}
