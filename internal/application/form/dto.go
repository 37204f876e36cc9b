package form

import (
	"time"

	"github.com/formhub/backend/internal/domain/form"
	"github.com/google/uuid"
)

// CreateFormInput contains the input for creating a form
type CreateFormInput struct {
	Title       string           `json:"title" validate:"required,max=255"`
	Description string           `json:"description"`
	Fields      []form.FieldSpec `json:"fields" validate:"dive"`
}

// UpdateFormInput holds optional changes. A non-nil Fields replaces every field.
type UpdateFormInput struct {
	Title       *string           `json:"title" validate:"omitempty,max=255"`
	Description *string           `json:"description"`
	Fields      *[]form.FieldSpec `json:"fields" validate:"omitempty,dive"`
}

// FieldResponse is the public view of a form field
type FieldResponse struct {
	ID          uuid.UUID      `json:"id"`
	FormID      uuid.UUID      `json:"form_id"`
	Type        form.FieldType `json:"field_type"`
	Label       string         `json:"label"`
	Name        string         `json:"name"`
	IsRequired  bool           `json:"is_required"`
	Order       int            `json:"order"`
	Options     *string        `json:"options"`
	Placeholder *string        `json:"placeholder"`
}

// FormResponse is the public view of a form
type FormResponse struct {
	ID          uuid.UUID       `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	CreatorID   uuid.UUID       `json:"creator_id"`
	Fields      []FieldResponse `json:"fields"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ToFormResponse converts a domain form
func ToFormResponse(f *form.Form) FormResponse {
	fields := make([]FieldResponse, 0, len(f.Fields))
	for _, field := range f.Fields {
		fields = append(fields, FieldResponse{
			ID:          field.ID,
			FormID:      f.ID,
			Type:        field.Type,
			Label:       field.Label,
			Name:        field.Name,
			IsRequired:  field.IsRequired,
			Order:       field.Order,
			Options:     optional(field.Options),
			Placeholder: optional(field.Placeholder),
		})
	}
	return FormResponse{
		ID:          f.ID,
		Title:       f.Title,
		Description: f.Description,
		CreatorID:   f.CreatorID,
		Fields:      fields,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// ToFormResponses converts a list of domain forms
func ToFormResponses(forms []*form.Form) []FormResponse {
	out := make([]FormResponse, 0, len(forms))
	for _, f := range forms {
		out = append(out, ToFormResponse(f))
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
