package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/formhub/backend/internal/domain/shared"
	"github.com/formhub/backend/internal/domain/submission"
	"github.com/formhub/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// GormSubmissionRepository implements SubmissionRepository using GORM
type GormSubmissionRepository struct {
	db *gorm.DB
}

// NewGormSubmissionRepository creates a new GormSubmissionRepository
func NewGormSubmissionRepository(db *gorm.DB) *GormSubmissionRepository {
	return &GormSubmissionRepository{db: db}
}

// Create stores a submission with its answers and file records
func (r *GormSubmissionRepository) Create(ctx context.Context, s *submission.Submission) error {
	model := models.SubmissionModelFromDomain(s)
	return r.db.WithContext(ctx).Create(model).Error
}

// Delete removes a submission with its answers and file records
func (r *GormSubmissionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("submission_id = ?", id).Delete(&models.FieldValueModel{}).Error; err != nil {
		return err
	}
	if err := db.Where("submission_id = ?", id).Delete(&models.FileModel{}).Error; err != nil {
		return err
	}
	result := db.Delete(&models.SubmissionModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByID finds a submission with answers and files
func (r *GormSubmissionRepository) FindByID(ctx context.Context, id uuid.UUID) (*submission.Submission, error) {
	var model models.SubmissionModel
	if err := r.db.WithContext(ctx).
		Preload("Values").
		Preload("Files").
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByForm lists submissions of a form, newest first
func (r *GormSubmissionRepository) FindByForm(ctx context.Context, formID uuid.UUID, page shared.Page) ([]*submission.Submission, error) {
	page = page.Normalize()
	var subModels []models.SubmissionModel
	if err := r.db.WithContext(ctx).
		Preload("Values").
		Preload("Files").
		Where("form_id = ?", formID).
		Order("submitted_at DESC").
		Offset(page.Skip).
		Limit(page.Limit).
		Find(&subModels).Error; err != nil {
		return nil, err
	}

	result := make([]*submission.Submission, len(subModels))
	for i := range subModels {
		result[i] = subModels[i].ToDomain()
	}
	return result, nil
}

// CountByForm counts the submissions of a form
func (r *GormSubmissionRepository) CountByForm(ctx context.Context, formID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SubmissionModel{}).
		Where("form_id = ?", formID).
		Count(&count).Error
	return count, err
}

// summaryRow is the flat projection of the search join
type summaryRow struct {
	ID          uuid.UUID
	FormID      uuid.UUID
	UserID      uuid.UUID
	SubmittedAt time.Time
	UserName    string
	UserEmail   *string
	FormTitle   string
}

// Search lists submissions visible to an administrator, newest first.
// The total ignores pagination.
func (r *GormSubmissionRepository) Search(ctx context.Context, filter submission.SearchFilter) ([]*submission.Summary, int64, error) {
	page := filter.Page.Normalize()
	db := r.db.WithContext(ctx)

	query := db.Table("form_submissions AS s").
		Joins("JOIN users u ON u.id = s.user_id").
		Joins("JOIN forms f ON f.id = s.form_id").
		Where("(f.creator_id = ? OR u.admin_id = ?)", filter.AdminID, filter.AdminID)

	if filter.FormID != nil {
		query = query.Where("s.form_id = ?", *filter.FormID)
	}
	if filter.DateFrom != nil {
		query = query.Where("s.submitted_at >= ?", filter.DateFrom.UTC())
	}
	if filter.DateTo != nil {
		query = query.Where("s.submitted_at <= ?", filter.DateTo.UTC())
	}
	if name := strings.TrimSpace(filter.UserName); name != "" {
		query = query.Where("LOWER(u.name) LIKE ? ESCAPE '\\'", containsPattern(name))
	}
	if email := strings.TrimSpace(filter.UserEmail); email != "" {
		query = query.Where("LOWER(u.email) LIKE ? ESCAPE '\\'", containsPattern(email))
	}
	if term := strings.TrimSpace(filter.FieldValueSearch); term != "" {
		query = query.Where(
			"EXISTS (SELECT 1 FROM form_field_values fv WHERE fv.submission_id = s.id AND LOWER(fv.value) LIKE ? ESCAPE '\\')",
			containsPattern(term),
		)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []summaryRow
	if err := query.
		Select("s.id, s.form_id, s.user_id, s.submitted_at, u.name AS user_name, u.email AS user_email, f.title AS form_title").
		Order("s.submitted_at DESC").
		Offset(page.Skip).
		Limit(page.Limit).
		Scan(&rows).Error; err != nil {
		return nil, 0, err
	}
	if len(rows) == 0 {
		return []*submission.Summary{}, total, nil
	}

	ids := lo.Map(rows, func(row summaryRow, _ int) uuid.UUID { return row.ID })

	var values []models.FieldValueModel
	if err := db.Where("submission_id IN ?", ids).Find(&values).Error; err != nil {
		return nil, 0, err
	}
	var files []models.FileModel
	if err := db.Where("submission_id IN ?", ids).Find(&files).Error; err != nil {
		return nil, 0, err
	}
	valuesBySubmission := lo.GroupBy(values, func(v models.FieldValueModel) uuid.UUID { return v.SubmissionID })
	filesBySubmission := lo.GroupBy(files, func(f models.FileModel) uuid.UUID { return f.SubmissionID })

	summaries := make([]*submission.Summary, len(rows))
	for i, row := range rows {
		model := models.SubmissionModel{
			ID:          row.ID,
			FormID:      row.FormID,
			UserID:      row.UserID,
			SubmittedAt: row.SubmittedAt,
			Values:      valuesBySubmission[row.ID],
			Files:       filesBySubmission[row.ID],
		}
		summaries[i] = &submission.Summary{
			Submission: model.ToDomain(),
			UserName:   row.UserName,
			UserEmail:  lo.FromPtr(row.UserEmail),
			FormTitle:  row.FormTitle,
		}
	}
	return summaries, total, nil
}

// containsPattern builds a case-insensitive LIKE pattern with wildcards escaped
func containsPattern(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(strings.ToLower(term)) + "%"
}

// Ensure GormSubmissionRepository implements SubmissionRepository
var _ submission.SubmissionRepository = (*GormSubmissionRepository)(nil)
