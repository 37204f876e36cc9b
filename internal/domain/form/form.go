package form

import (
	"sort"
	"strings"

	"github.com/formhub/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// FieldType identifies how a field is rendered and how its value is treated
type FieldType string

const (
	FieldTypeText      FieldType = "text"
	FieldTypeTextarea  FieldType = "textarea"
	FieldTypeEmail     FieldType = "email"
	FieldTypeNumber    FieldType = "number"
	FieldTypeDate      FieldType = "date"
	FieldTypeSelect    FieldType = "select"
	FieldTypeRadio     FieldType = "radio"
	FieldTypeCheckbox  FieldType = "checkbox"
	FieldTypeFile      FieldType = "file"
	FieldTypeFiles     FieldType = "files"
	FieldTypeSignature FieldType = "signature"
)

// IsUpload reports whether values of this type arrive as uploaded files
func (t FieldType) IsUpload() bool {
	return t == FieldTypeFile || t == FieldTypeFiles
}

// Field is a single typed input on a form
type Field struct {
	ID          uuid.UUID
	FormID      uuid.UUID
	Type        FieldType
	Label       string
	Name        string
	IsRequired  bool
	Order       int
	Options     string // JSON encoded choices for select and radio
	Placeholder string
}

// FieldSpec describes a field to be created on a form
type FieldSpec struct {
	Type        FieldType `json:"field_type" validate:"required,max=50"`
	Label       string    `json:"label" validate:"required,max=255"`
	Name        string    `json:"name" validate:"required,max=255"`
	IsRequired  bool      `json:"is_required"`
	Order       *int      `json:"order,omitempty"`
	Options     string    `json:"options,omitempty"`
	Placeholder string    `json:"placeholder,omitempty" validate:"max=255"`
}

// Form is the aggregate root for a form definition and its ordered fields
type Form struct {
	shared.BaseEntity
	Title       string
	Description string
	CreatorID   uuid.UUID
	Fields      []Field
}

// NewForm creates a form owned by creatorID
func NewForm(creatorID uuid.UUID, title, description string, fields []FieldSpec) (*Form, error) {
	if creatorID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CREATOR", "Form creator is required")
	}
	f := &Form{
		BaseEntity:  shared.NewBaseEntity(),
		CreatorID:   creatorID,
		Description: strings.TrimSpace(description),
	}
	if err := f.Rename(title); err != nil {
		return nil, err
	}
	if err := f.ReplaceFields(fields); err != nil {
		return nil, err
	}
	return f, nil
}

// Rename changes the form title
func (f *Form) Rename(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return shared.NewDomainError("INVALID_TITLE", "Form title cannot be empty")
	}
	if len(title) > 255 {
		return shared.NewDomainError("INVALID_TITLE", "Form title cannot exceed 255 characters")
	}
	f.Title = title
	f.Touch()
	return nil
}

// SetDescription replaces the description
func (f *Form) SetDescription(description string) {
	f.Description = strings.TrimSpace(description)
	f.Touch()
}

// ReplaceFields discards the current fields and builds new ones from specs.
// A spec without an explicit order takes its position in the list.
func (f *Form) ReplaceFields(specs []FieldSpec) error {
	fields := make([]Field, 0, len(specs))
	names := make(map[string]struct{}, len(specs))
	for idx, spec := range specs {
		if strings.TrimSpace(spec.Label) == "" || strings.TrimSpace(spec.Name) == "" || spec.Type == "" {
			return shared.NewDomainError("INVALID_FIELD", "Field type, label and name are required")
		}
		if _, dup := names[spec.Name]; dup {
			return shared.NewDomainError("DUPLICATE_FIELD", "Field name must be unique within a form: "+spec.Name)
		}
		names[spec.Name] = struct{}{}

		order := idx
		if spec.Order != nil {
			order = *spec.Order
		}
		fields = append(fields, Field{
			ID:          uuid.New(),
			FormID:      f.ID,
			Type:        spec.Type,
			Label:       strings.TrimSpace(spec.Label),
			Name:        strings.TrimSpace(spec.Name),
			IsRequired:  spec.IsRequired,
			Order:       order,
			Options:     spec.Options,
			Placeholder: spec.Placeholder,
		})
	}
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Order < fields[j].Order })
	f.Fields = fields
	f.Touch()
	return nil
}

// FieldByID finds a field by its ID
func (f *Form) FieldByID(id uuid.UUID) (*Field, bool) {
	for i := range f.Fields {
		if f.Fields[i].ID == id {
			return &f.Fields[i], true
		}
	}
	return nil, false
}

// IsOwnedBy reports whether userID created the form
func (f *Form) IsOwnedBy(userID uuid.UUID) bool {
	return f.CreatorID == userID
}
