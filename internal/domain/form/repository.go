package form

import (
	"context"

	"github.com/formhub/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// FormRepository persists forms together with their fields
type FormRepository interface {
	Create(ctx context.Context, form *Form) error
	// Update saves the form and replaces its fields
	Update(ctx context.Context, form *Form) error
	// Delete removes the form with its fields, submissions, values and file records
	Delete(ctx context.Context, id uuid.UUID) error
	// FindByID loads the form with fields ordered by Order
	FindByID(ctx context.Context, id uuid.UUID) (*Form, error)
	FindByCreator(ctx context.Context, creatorID uuid.UUID, page shared.Page) ([]*Form, error)
}
