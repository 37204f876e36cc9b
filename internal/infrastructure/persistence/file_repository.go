package persistence

import (
	"context"
	"errors"

	"github.com/formhub/backend/internal/domain/shared"
	"github.com/formhub/backend/internal/domain/submission"
	"github.com/formhub/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormFileRepository implements FileRepository using GORM
type GormFileRepository struct {
	db *gorm.DB
}

// NewGormFileRepository creates a new GormFileRepository
func NewGormFileRepository(db *gorm.DB) *GormFileRepository {
	return &GormFileRepository{db: db}
}

// Create stores a file record
func (r *GormFileRepository) Create(ctx context.Context, f *submission.File) error {
	return r.db.WithContext(ctx).Create(models.FileModelFromDomain(f)).Error
}

// FindByID finds a file record by ID
func (r *GormFileRepository) FindByID(ctx context.Context, id uuid.UUID) (*submission.File, error) {
	var model models.FileModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindBySubmission lists the files of a submission in upload order
func (r *GormFileRepository) FindBySubmission(ctx context.Context, submissionID uuid.UUID) ([]*submission.File, error) {
	var fileModels []models.FileModel
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("uploaded_at ASC").
		Find(&fileModels).Error; err != nil {
		return nil, err
	}
	return filesToDomain(fileModels), nil
}

// FindByForm lists every file uploaded to any submission of a form
func (r *GormFileRepository) FindByForm(ctx context.Context, formID uuid.UUID) ([]*submission.File, error) {
	var fileModels []models.FileModel
	if err := r.db.WithContext(ctx).
		Where("submission_id IN (?)",
			r.db.Model(&models.SubmissionModel{}).Select("id").Where("form_id = ?", formID)).
		Find(&fileModels).Error; err != nil {
		return nil, err
	}
	return filesToDomain(fileModels), nil
}

// Delete removes a file record
func (r *GormFileRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.FileModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func filesToDomain(fileModels []models.FileModel) []*submission.File {
	files := make([]*submission.File, len(fileModels))
	for i := range fileModels {
		files[i] = fileModels[i].ToDomain()
	}
	return files
}

// Ensure GormFileRepository implements FileRepository
var _ submission.FileRepository = (*GormFileRepository)(nil)
