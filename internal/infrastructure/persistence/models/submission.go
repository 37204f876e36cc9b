package models

import (
	"time"

	"github.com/formhub/backend/internal/domain/shared"
	"github.com/formhub/backend/internal/domain/submission"
	"github.com/google/uuid"
)

// SubmissionModel is the persistence model for the Submission aggregate root.
type SubmissionModel struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey"`
	FormID      uuid.UUID         `gorm:"type:uuid;not null;index"`
	UserID      uuid.UUID         `gorm:"type:uuid;not null;index"`
	SubmittedAt time.Time         `gorm:"not null;index"`
	Values      []FieldValueModel `gorm:"foreignKey:SubmissionID;constraint:OnDelete:CASCADE"`
	Files       []FileModel       `gorm:"foreignKey:SubmissionID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (SubmissionModel) TableName() string {
	return "form_submissions"
}

// FieldValueModel stores the answer to one field.
type FieldValueModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	SubmissionID uuid.UUID `gorm:"type:uuid;not null;index"`
	FieldID      uuid.UUID `gorm:"type:uuid;not null;index"`
	Value        string    `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (FieldValueModel) TableName() string {
	return "form_field_values"
}

// FileModel stores metadata of an uploaded blob.
type FileModel struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey"`
	SubmissionID     uuid.UUID  `gorm:"type:uuid;not null;index"`
	FieldID          *uuid.UUID `gorm:"type:uuid;index"`
	OriginalFilename string     `gorm:"type:varchar(255);not null"`
	BlobName         string     `gorm:"type:varchar(500);not null"`
	BlobURL          string     `gorm:"type:varchar(1000);not null"`
	FileSize         int64      `gorm:"not null"`
	ContentType      *string    `gorm:"type:varchar(100)"`
	UploadedAt       time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (FileModel) TableName() string {
	return "files"
}

// ToDomain converts the persistence model to a domain Submission.
func (m *SubmissionModel) ToDomain() *submission.Submission {
	s := &submission.Submission{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.SubmittedAt,
				UpdatedAt: m.SubmittedAt,
			},
		},
		FormID:      m.FormID,
		UserID:      m.UserID,
		SubmittedAt: m.SubmittedAt,
		Values:      make([]submission.FieldValue, 0, len(m.Values)),
		Files:       make([]submission.File, 0, len(m.Files)),
	}
	for _, v := range m.Values {
		s.Values = append(s.Values, submission.FieldValue{
			ID:           v.ID,
			SubmissionID: v.SubmissionID,
			FieldID:      v.FieldID,
			Value:        v.Value,
		})
	}
	for i := range m.Files {
		s.Files = append(s.Files, *m.Files[i].ToDomain())
	}
	return s
}

// SubmissionModelFromDomain creates a persistence model with values and files.
func SubmissionModelFromDomain(s *submission.Submission) *SubmissionModel {
	m := &SubmissionModel{
		ID:          s.ID,
		FormID:      s.FormID,
		UserID:      s.UserID,
		SubmittedAt: s.SubmittedAt,
		Values:      make([]FieldValueModel, 0, len(s.Values)),
		Files:       make([]FileModel, 0, len(s.Files)),
	}
	for _, v := range s.Values {
		m.Values = append(m.Values, FieldValueModel{
			ID:           v.ID,
			SubmissionID: s.ID,
			FieldID:      v.FieldID,
			Value:        v.Value,
		})
	}
	for i := range s.Files {
		fm := FileModelFromDomain(&s.Files[i])
		fm.SubmissionID = s.ID
		m.Files = append(m.Files, *fm)
	}
	return m
}

// ToDomain converts the persistence model to a domain File.
func (m *FileModel) ToDomain() *submission.File {
	return &submission.File{
		ID:               m.ID,
		SubmissionID:     m.SubmissionID,
		FieldID:          m.FieldID,
		OriginalFilename: m.OriginalFilename,
		BlobName:         m.BlobName,
		BlobURL:          m.BlobURL,
		FileSize:         m.FileSize,
		ContentType:      derefString(m.ContentType),
		UploadedAt:       m.UploadedAt,
	}
}

// FileModelFromDomain creates a persistence model from a domain File.
func FileModelFromDomain(f *submission.File) *FileModel {
	return &FileModel{
		ID:               f.ID,
		SubmissionID:     f.SubmissionID,
		FieldID:          f.FieldID,
		OriginalFilename: f.OriginalFilename,
		BlobName:         f.BlobName,
		BlobURL:          f.BlobURL,
		FileSize:         f.FileSize,
		ContentType:      nullableString(f.ContentType),
		UploadedAt:       f.UploadedAt,
	}
}
