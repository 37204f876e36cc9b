package notification

import (
	"strings"

	"github.com/formhub/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ChannelType identifies a delivery mechanism
type ChannelType string

// ChannelTypeTelegram delivers messages through a Telegram bot
const ChannelTypeTelegram ChannelType = "telegram"

// Channel is a user's configuration for one delivery mechanism.
// A user has at most one channel per type.
type Channel struct {
	shared.BaseEntity
	UserID    uuid.UUID
	Type      ChannelType
	IsEnabled bool
	ChatID    string
}

// NewTelegramChannel creates a disabled Telegram channel for a user
func NewTelegramChannel(userID uuid.UUID) *Channel {
	return &Channel{
		BaseEntity: shared.NewBaseEntity(),
		UserID:     userID,
		Type:       ChannelTypeTelegram,
	}
}

// Configure applies optional settings. Enabling requires a chat ID.
func (c *Channel) Configure(chatID *string, enabled *bool) error {
	if chatID != nil {
		c.ChatID = strings.TrimSpace(*chatID)
	}
	if enabled != nil {
		c.IsEnabled = *enabled
	}
	if c.IsEnabled && c.ChatID == "" {
		return shared.NewDomainError("CHAT_ID_REQUIRED", "Telegram chat ID is required to enable notifications")
	}
	c.Touch()
	return nil
}

// Deliverable reports whether messages can be sent on this channel
func (c *Channel) Deliverable() bool {
	return c.IsEnabled && c.ChatID != ""
}
