package persistence

import (
	"context"
	"errors"

	"github.com/formhub/backend/internal/domain/notification"
	"github.com/formhub/backend/internal/domain/shared"
	"github.com/formhub/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormChannelRepository implements ChannelRepository using GORM
type GormChannelRepository struct {
	db *gorm.DB
}

// NewGormChannelRepository creates a new GormChannelRepository
func NewGormChannelRepository(db *gorm.DB) *GormChannelRepository {
	return &GormChannelRepository{db: db}
}

// Save upserts the channel on (user_id, channel_type)
func (r *GormChannelRepository) Save(ctx context.Context, channel *notification.Channel) error {
	model := models.NotificationChannelModelFromDomain(channel)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "channel_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_enabled", "config", "updated_at"}),
		}).
		Create(model).Error
}

// FindByUserAndType finds the channel of a given type for a user
func (r *GormChannelRepository) FindByUserAndType(ctx context.Context, userID uuid.UUID, channelType notification.ChannelType) (*notification.Channel, error) {
	var model models.NotificationChannelModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND channel_type = ?", userID, string(channelType)).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Ensure GormChannelRepository implements ChannelRepository
var _ notification.ChannelRepository = (*GormChannelRepository)(nil)
