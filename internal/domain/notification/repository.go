package notification

import (
	"context"

	"github.com/google/uuid"
)

// ChannelRepository persists notification channels
type ChannelRepository interface {
	// Save inserts or updates the channel keyed by user and type
	Save(ctx context.Context, channel *Channel) error
	FindByUserAndType(ctx context.Context, userID uuid.UUID, channelType ChannelType) (*Channel, error)
}
