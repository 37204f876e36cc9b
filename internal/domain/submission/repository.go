package submission

import (
	"context"
	"time"

	"github.com/formhub/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// SearchFilter narrows the submissions visible to an administrator
type SearchFilter struct {
	// AdminID scopes results to forms the admin created or users linked to the admin
	AdminID          uuid.UUID
	FormID           *uuid.UUID
	DateFrom         *time.Time
	DateTo           *time.Time
	UserName         string
	UserEmail        string
	FieldValueSearch string
	Page             shared.Page
}

// Summary is a submission row joined with its respondent for listings
type Summary struct {
	*Submission
	UserName  string
	UserEmail string
	FormTitle string
}

// SubmissionRepository persists submissions with their values and files
type SubmissionRepository interface {
	Create(ctx context.Context, s *Submission) error
	Delete(ctx context.Context, id uuid.UUID) error
	// FindByID loads values and files
	FindByID(ctx context.Context, id uuid.UUID) (*Submission, error)
	FindByForm(ctx context.Context, formID uuid.UUID, page shared.Page) ([]*Submission, error)
	CountByForm(ctx context.Context, formID uuid.UUID) (int64, error)
	Search(ctx context.Context, filter SearchFilter) ([]*Summary, int64, error)
}

// FileRepository persists uploaded file records
type FileRepository interface {
	Create(ctx context.Context, f *File) error
	FindByID(ctx context.Context, id uuid.UUID) (*File, error)
	FindBySubmission(ctx context.Context, submissionID uuid.UUID) ([]*File, error)
	// FindByForm lists every file uploaded to any submission of the form
	FindByForm(ctx context.Context, formID uuid.UUID) ([]*File, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
