package models

import (
	"github.com/formhub/backend/internal/domain/notification"
	"github.com/google/uuid"
)

// ChannelConfig is the channel specific configuration stored as JSON.
type ChannelConfig struct {
	ChatID string `json:"chat_id,omitempty"`
}

// NotificationChannelModel is the persistence model for a notification channel.
type NotificationChannelModel struct {
	BaseModel
	UserID      uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:uq_user_channel_type"`
	ChannelType string        `gorm:"type:varchar(20);not null;uniqueIndex:uq_user_channel_type"`
	IsEnabled   bool          `gorm:"not null;default:false"`
	Config      ChannelConfig `gorm:"type:text;serializer:json;not null"`
}

// TableName returns the table name for GORM
func (NotificationChannelModel) TableName() string {
	return "notification_channels"
}

// ToDomain converts the persistence model to a domain Channel.
func (m *NotificationChannelModel) ToDomain() *notification.Channel {
	return &notification.Channel{
		BaseEntity: m.BaseModel.ToDomain(),
		UserID:     m.UserID,
		Type:       notification.ChannelType(m.ChannelType),
		IsEnabled:  m.IsEnabled,
		ChatID:     m.Config.ChatID,
	}
}

// NotificationChannelModelFromDomain creates a persistence model from a domain Channel.
func NotificationChannelModelFromDomain(c *notification.Channel) *NotificationChannelModel {
	m := &NotificationChannelModel{
		UserID:      c.UserID,
		ChannelType: string(c.Type),
		IsEnabled:   c.IsEnabled,
		Config:      ChannelConfig{ChatID: c.ChatID},
	}
	m.FromDomainBaseEntity(c.BaseEntity)
	return m
}
