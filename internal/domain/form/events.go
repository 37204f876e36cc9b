package form

import (
	"github.com/formhub/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// AggregateType is the aggregate name used on form events
const AggregateType = "Form"

// EventTypeFormDeleted is the dispatch key of FormDeletedEvent
const EventTypeFormDeleted = "FormDeleted"

// FormDeletedEvent is raised when a form and everything submitted to it is removed.
// BlobKeys lists the stored objects that no longer have a record.
type FormDeletedEvent struct {
	shared.BaseDomainEvent
	FormID   uuid.UUID `json:"form_id"`
	BlobKeys []string  `json:"blob_keys"`
}

// NewFormDeletedEvent builds the event for f
func NewFormDeletedEvent(f *Form, blobKeys []string) *FormDeletedEvent {
	return &FormDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeFormDeleted, AggregateType, f.ID, f.CreatorID),
		FormID:          f.ID,
		BlobKeys:        blobKeys,
	}
}

// StoredBlobs returns the keys of objects to remove
func (e *FormDeletedEvent) StoredBlobs() []string {
	return e.BlobKeys
}
