package submission

import (
	"github.com/formhub/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// EventTypeSubmissionCreated is the dispatch key of SubmissionCreatedEvent
const EventTypeSubmissionCreated = "SubmissionCreated"

// SubmissionCreatedEvent is raised once a form submission has been stored
type SubmissionCreatedEvent struct {
	shared.BaseDomainEvent
	SubmissionID uuid.UUID `json:"submission_id"`
	FormID       uuid.UUID `json:"form_id"`
	UserID       uuid.UUID `json:"user_id"`
}

// NewSubmissionCreatedEvent builds the event for s
func NewSubmissionCreatedEvent(s *Submission, tenantID uuid.UUID) *SubmissionCreatedEvent {
	return &SubmissionCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSubmissionCreated, AggregateType, s.ID, tenantID),
		SubmissionID:    s.ID,
		FormID:          s.FormID,
		UserID:          s.UserID,
	}
}

// EventTypeSubmissionDeleted is the dispatch key of SubmissionDeletedEvent
const EventTypeSubmissionDeleted = "SubmissionDeleted"

// SubmissionDeletedEvent is raised when a submission is removed.
// BlobKeys lists its uploaded objects.
type SubmissionDeletedEvent struct {
	shared.BaseDomainEvent
	SubmissionID uuid.UUID `json:"submission_id"`
	FormID       uuid.UUID `json:"form_id"`
	BlobKeys     []string  `json:"blob_keys"`
}

// NewSubmissionDeletedEvent builds the event for s
func NewSubmissionDeletedEvent(s *Submission, tenantID uuid.UUID) *SubmissionDeletedEvent {
	keys := make([]string, 0, len(s.Files))
	for _, f := range s.Files {
		if f.BlobName != "" {
			keys = append(keys, f.BlobName)
		}
	}
	return &SubmissionDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSubmissionDeleted, AggregateType, s.ID, tenantID),
		SubmissionID:    s.ID,
		FormID:          s.FormID,
		BlobKeys:        keys,
	}
}

// StoredBlobs returns the keys of objects to remove
func (e *SubmissionDeletedEvent) StoredBlobs() []string {
	return e.BlobKeys
}
