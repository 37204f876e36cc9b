package persistence

import (
	"context"
	"errors"

	"github.com/formhub/backend/internal/domain/form"
	"github.com/formhub/backend/internal/domain/shared"
	"github.com/formhub/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormFormRepository implements FormRepository using GORM
type GormFormRepository struct {
	db *gorm.DB
}

// NewGormFormRepository creates a new GormFormRepository
func NewGormFormRepository(db *gorm.DB) *GormFormRepository {
	return &GormFormRepository{db: db}
}

func orderedFields(db *gorm.DB) *gorm.DB {
	return db.Order(clause.OrderByColumn{Column: clause.Column{Name: "order"}})
}

// Create creates a form with its fields
func (r *GormFormRepository) Create(ctx context.Context, f *form.Form) error {
	model := models.FormModelFromDomain(f)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update saves the form row and synchronises its fields.
// Fields no longer present are removed with their answers; files keep
// their submission but lose the field reference.
func (r *GormFormRepository) Update(ctx context.Context, f *form.Form) error {
	model := models.FormModelFromDomain(f)
	db := r.db.WithContext(ctx)

	result := db.Omit(clause.Associations).Save(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}

	keep := make([]uuid.UUID, 0, len(model.Fields))
	for _, field := range model.Fields {
		keep = append(keep, field.ID)
	}

	stale := db.Model(&models.FormFieldModel{}).Select("id").Where("form_id = ?", f.ID)
	if len(keep) > 0 {
		stale = stale.Where("id NOT IN ?", keep)
	}

	if err := db.Where("field_id IN (?)", stale).Delete(&models.FieldValueModel{}).Error; err != nil {
		return err
	}
	if err := db.Model(&models.FileModel{}).
		Where("field_id IN (?)", stale).
		Update("field_id", nil).Error; err != nil {
		return err
	}

	deleteStale := db.Where("form_id = ?", f.ID)
	if len(keep) > 0 {
		deleteStale = deleteStale.Where("id NOT IN ?", keep)
	}
	if err := deleteStale.Delete(&models.FormFieldModel{}).Error; err != nil {
		return err
	}

	if len(model.Fields) == 0 {
		return nil
	}
	return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&model.Fields).Error
}

// Delete removes the form together with fields, submissions, answers and file records.
// Stored blobs are the caller's concern.
func (r *GormFormRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	submissions := db.Model(&models.SubmissionModel{}).Select("id").Where("form_id = ?", id)

	if err := db.Where("submission_id IN (?)", submissions).Delete(&models.FieldValueModel{}).Error; err != nil {
		return err
	}
	if err := db.Where("submission_id IN (?)", submissions).Delete(&models.FileModel{}).Error; err != nil {
		return err
	}
	if err := db.Where("form_id = ?", id).Delete(&models.SubmissionModel{}).Error; err != nil {
		return err
	}
	if err := db.Where("form_id = ?", id).Delete(&models.FormFieldModel{}).Error; err != nil {
		return err
	}

	result := db.Delete(&models.FormModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByID finds a form with its fields ordered
func (r *GormFormRepository) FindByID(ctx context.Context, id uuid.UUID) (*form.Form, error) {
	var model models.FormModel
	if err := r.db.WithContext(ctx).
		Preload("Fields", orderedFields).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCreator lists forms created by a user, newest first
func (r *GormFormRepository) FindByCreator(ctx context.Context, creatorID uuid.UUID, page shared.Page) ([]*form.Form, error) {
	page = page.Normalize()
	var formModels []models.FormModel
	if err := r.db.WithContext(ctx).
		Preload("Fields", orderedFields).
		Where("creator_id = ?", creatorID).
		Order("created_at DESC").
		Offset(page.Skip).
		Limit(page.Limit).
		Find(&formModels).Error; err != nil {
		return nil, err
	}

	forms := make([]*form.Form, len(formModels))
	for i := range formModels {
		forms[i] = formModels[i].ToDomain()
	}
	return forms, nil
}

// Ensure GormFormRepository implements FormRepository
var _ form.FormRepository = (*GormFormRepository)(nil)
