package submission

import (
	"fmt"
	"time"

	"github.com/formhub/backend/internal/domain/form"
	"github.com/formhub/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// AggregateType is the aggregate name used on submission events
const AggregateType = "FormSubmission"

// FieldValue is the answer given to one form field
type FieldValue struct {
	ID           uuid.UUID
	SubmissionID uuid.UUID
	FieldID      uuid.UUID
	Value        string
}

// Submission is one response to a form
type Submission struct {
	shared.BaseAggregateRoot
	FormID      uuid.UUID
	UserID      uuid.UUID
	SubmittedAt time.Time
	Values      []FieldValue
	Files       []File
}

// New creates an empty submission for the given form and respondent
func New(formID, userID uuid.UUID) *Submission {
	root := shared.NewBaseAggregateRoot()
	return &Submission{
		BaseAggregateRoot: root,
		FormID:            formID,
		UserID:            userID,
		SubmittedAt:       root.CreatedAt,
	}
}

// AddValue records the answer for a field of f.
// Unknown fields are rejected so a submission never references a foreign field.
func (s *Submission) AddValue(f *form.Form, fieldID uuid.UUID, value string) error {
	if _, ok := f.FieldByID(fieldID); !ok {
		return ErrUnknownField(fieldID)
	}
	s.Values = append(s.Values, FieldValue{
		ID:           uuid.New(),
		SubmissionID: s.ID,
		FieldID:      fieldID,
		Value:        value,
	})
	return nil
}

// AttachFile adds an uploaded file record
func (s *Submission) AttachFile(file File) {
	file.SubmissionID = s.ID
	s.Files = append(s.Files, file)
}

// ValueFor returns the answer for a field, if any
func (s *Submission) ValueFor(fieldID uuid.UUID) (string, bool) {
	for _, v := range s.Values {
		if v.FieldID == fieldID {
			return v.Value, true
		}
	}
	return "", false
}

// FileCount returns the number of files uploaded for a field
func (s *Submission) FileCount(fieldID uuid.UUID) int {
	n := 0
	for _, f := range s.Files {
		if f.FieldID != nil && *f.FieldID == fieldID {
			n++
		}
	}
	return n
}

// CheckRequired verifies that every required field of f has an answer
func (s *Submission) CheckRequired(f *form.Form) error {
	for _, field := range f.Fields {
		if !field.IsRequired {
			continue
		}
		if field.Type.IsUpload() {
			if s.FileCount(field.ID) == 0 {
				return ErrMissingRequired(field.Label)
			}
			continue
		}
		if v, ok := s.ValueFor(field.ID); !ok || v == "" {
			return ErrMissingRequired(field.Label)
		}
	}
	return nil
}

// MarkCreated raises the creation event. tenantID is the form creator.
func (s *Submission) MarkCreated(tenantID uuid.UUID) {
	s.AddDomainEvent(NewSubmissionCreatedEvent(s, tenantID))
}

// ErrUnknownField is returned when a value references a field not on the form
func ErrUnknownField(fieldID uuid.UUID) error {
	return shared.NewDomainError("INVALID_FIELD_REFERENCE",
		fmt.Sprintf("Field %s does not belong to this form", fieldID))
}

// ErrMissingRequired is returned when a required field has no answer
func ErrMissingRequired(label string) error {
	return shared.NewDomainError("REQUIRED_FIELD_MISSING",
		fmt.Sprintf("Field %q is required", label))
}
