package notification

import (
	"context"
	"errors"

	"github.com/formhub/backend/internal/application/uow"
	"github.com/formhub/backend/internal/domain/notification"
	"github.com/formhub/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Settings is the notification configuration shown to a user
type Settings struct {
	TelegramChatID               *string `json:"telegram_chat_id"`
	TelegramNotificationsEnabled bool    `json:"telegram_notifications_enabled"`
	// Email delivery is not offered; the flag is always false
	EmailNotificationsEnabled bool `json:"email_notifications_enabled"`
}

// UpdateSettingsInput holds optional changes
type UpdateSettingsInput struct {
	TelegramChatID               *string `json:"telegram_chat_id"`
	TelegramNotificationsEnabled *bool   `json:"telegram_notifications_enabled"`
}

// SettingsService reads and changes a user's notification channels
type SettingsService struct {
	rc     *uow.RequestContext
	logger *zap.Logger
}

// NewSettingsService creates a settings service bound to rc
func NewSettingsService(rc *uow.RequestContext, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{rc: rc, logger: logger}
}

// Get returns userID's settings. Users without a channel get the defaults.
func (s *SettingsService) Get(ctx context.Context, actorID, userID uuid.UUID) (*Settings, error) {
	channel, err := s.channel(ctx, actorID, userID)
	if err != nil {
		return nil, err
	}
	return toSettings(channel), nil
}

// Update applies input to userID's Telegram channel, creating it on first use
func (s *SettingsService) Update(ctx context.Context, actorID, userID uuid.UUID, input UpdateSettingsInput) (*Settings, error) {
	channel, err := s.channel(ctx, actorID, userID)
	if err != nil {
		return nil, err
	}
	if err := channel.Configure(input.TelegramChatID, input.TelegramNotificationsEnabled); err != nil {
		return nil, err
	}
	if err := s.rc.Session.NotificationChannels().Save(ctx, channel); err != nil {
		return nil, err
	}

	s.logger.Info("Notification settings updated",
		zap.String("user_id", userID.String()),
		zap.Bool("telegram_enabled", channel.IsEnabled),
	)
	return toSettings(channel), nil
}

// channel authorizes the actor and loads the target's Telegram channel,
// returning a new unsaved one when none exists
func (s *SettingsService) channel(ctx context.Context, actorID, userID uuid.UUID) (*notification.Channel, error) {
	users := s.rc.Session.Users()
	actor, err := users.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("UNAUTHORIZED", "Could not validate credentials")
		}
		return nil, err
	}
	if !actor.CanManage(userID) {
		return nil, shared.ErrForbidden
	}
	if _, err := users.FindByID(ctx, userID); err != nil {
		return nil, err
	}

	channel, err := s.rc.Session.NotificationChannels().FindByUserAndType(ctx, userID, notification.ChannelTypeTelegram)
	if errors.Is(err, shared.ErrNotFound) {
		return notification.NewTelegramChannel(userID), nil
	}
	return channel, err
}

func toSettings(c *notification.Channel) *Settings {
	settings := &Settings{TelegramNotificationsEnabled: c.IsEnabled}
	if c.ChatID != "" {
		chatID := c.ChatID
		settings.TelegramChatID = &chatID
	}
	return settings
}
