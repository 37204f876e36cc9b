package identity

import (
	"github.com/formhub/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// AggregateType is the aggregate name used on user events
const AggregateType = "User"

// EventTypeRespondentCreated is the dispatch key of RespondentCreatedEvent
const EventTypeRespondentCreated = "RespondentCreated"

// RespondentCreatedEvent is raised when a form submission registers a new respondent
type RespondentCreatedEvent struct {
	shared.BaseDomainEvent
	UserID  uuid.UUID `json:"user_id"`
	AdminID uuid.UUID `json:"admin_id"`
	Email   string    `json:"email,omitempty"`
}

// NewRespondentCreatedEvent builds the event for u. u must be linked to an administrator.
func NewRespondentCreatedEvent(u *User) *RespondentCreatedEvent {
	adminID := u.OwnerID()
	return &RespondentCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRespondentCreated, AggregateType, u.ID, adminID),
		UserID:          u.ID,
		AdminID:         adminID,
		Email:           u.Email,
	}
}
