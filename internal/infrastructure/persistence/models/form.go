package models

import (
	"sort"

	"github.com/formhub/backend/internal/domain/form"
	"github.com/google/uuid"
)

// FormModel is the persistence model for the Form aggregate root.
type FormModel struct {
	BaseModel
	Title       string           `gorm:"type:varchar(255);not null"`
	Description string           `gorm:"type:text"`
	CreatorID   uuid.UUID        `gorm:"type:uuid;not null;index"`
	Fields      []FormFieldModel `gorm:"foreignKey:FormID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (FormModel) TableName() string {
	return "forms"
}

// FormFieldModel is the persistence model for a form field.
type FormFieldModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	FormID      uuid.UUID `gorm:"type:uuid;not null;index"`
	FieldType   string    `gorm:"type:varchar(50);not null"`
	Label       string    `gorm:"type:varchar(255);not null"`
	Name        string    `gorm:"type:varchar(255);not null"`
	IsRequired  bool      `gorm:"not null;default:false"`
	Order       int       `gorm:"column:order;not null"`
	Options     *string   `gorm:"type:text"`
	Placeholder *string   `gorm:"type:varchar(255)"`
}

// TableName returns the table name for GORM
func (FormFieldModel) TableName() string {
	return "form_fields"
}

// ToDomain converts the persistence model to a domain Form.
// Fields are returned sorted by their order.
func (m *FormModel) ToDomain() *form.Form {
	f := &form.Form{
		BaseEntity:  m.BaseModel.ToDomain(),
		Title:       m.Title,
		Description: m.Description,
		CreatorID:   m.CreatorID,
		Fields:      make([]form.Field, 0, len(m.Fields)),
	}
	for i := range m.Fields {
		f.Fields = append(f.Fields, m.Fields[i].ToDomain())
	}
	sort.SliceStable(f.Fields, func(i, j int) bool {
		return f.Fields[i].Order < f.Fields[j].Order
	})
	return f
}

// ToDomain converts the persistence model to a domain Field.
func (m *FormFieldModel) ToDomain() form.Field {
	return form.Field{
		ID:          m.ID,
		FormID:      m.FormID,
		Type:        form.FieldType(m.FieldType),
		Label:       m.Label,
		Name:        m.Name,
		IsRequired:  m.IsRequired,
		Order:       m.Order,
		Options:     derefString(m.Options),
		Placeholder: derefString(m.Placeholder),
	}
}

// FormModelFromDomain creates a persistence model including fields.
func FormModelFromDomain(f *form.Form) *FormModel {
	m := &FormModel{
		Title:       f.Title,
		Description: f.Description,
		CreatorID:   f.CreatorID,
		Fields:      make([]FormFieldModel, 0, len(f.Fields)),
	}
	m.FromDomainBaseEntity(f.BaseEntity)
	for _, field := range f.Fields {
		m.Fields = append(m.Fields, FormFieldModel{
			ID:          field.ID,
			FormID:      f.ID,
			FieldType:   string(field.Type),
			Label:       field.Label,
			Name:        field.Name,
			IsRequired:  field.IsRequired,
			Order:       field.Order,
			Options:     nullableString(field.Options),
			Placeholder: nullableString(field.Placeholder),
		})
	}
	return m
}
