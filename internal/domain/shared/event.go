package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent represents a fact that happened in the domain.
// Events are immutable once constructed.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
	// TenantID is the administrator who owns the affected data
	TenantID() uuid.UUID
}

// BaseDomainEvent provides the common fields for all domain events
type BaseDomainEvent struct {
	ID            uuid.UUID `json:"id"`
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggID         uuid.UUID `json:"aggregate_id"`
	AggType       string    `json:"aggregate_type"`
	TenantIDValue uuid.UUID `json:"tenant_id"`
}

// EventID returns the unique event identifier
func (e BaseDomainEvent) EventID() uuid.UUID {
	return e.ID
}

// EventType returns the dispatch key of the event
func (e BaseDomainEvent) EventType() string {
	return e.Type
}

// OccurredAt returns when the event was created
func (e BaseDomainEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID returns the ID of the aggregate that produced this event
func (e BaseDomainEvent) AggregateID() uuid.UUID {
	return e.AggID
}

// AggregateType returns the type of the aggregate
func (e BaseDomainEvent) AggregateType() string {
	return e.AggType
}

// TenantID returns the owning administrator ID
func (e BaseDomainEvent) TenantID() uuid.UUID {
	return e.TenantIDValue
}

// NewBaseDomainEvent creates a base event with a fresh ID and timestamp
func NewBaseDomainEvent(eventType, aggType string, aggID, tenantID uuid.UUID) BaseDomainEvent {
	return BaseDomainEvent{
		ID:            uuid.New(),
		Type:          eventType,
		Timestamp:     time.Now().UTC(),
		AggID:         aggID,
		AggType:       aggType,
		TenantIDValue: tenantID,
	}
}
