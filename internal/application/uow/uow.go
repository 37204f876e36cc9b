// Package uow defines the per-request unit of work: one database session and
// one deferred event queue, bound together and handed explicitly to the
// application services serving the request.
package uow

import (
	"context"
	"errors"

	"github.com/formhub/backend/internal/domain/form"
	"github.com/formhub/backend/internal/domain/identity"
	"github.com/formhub/backend/internal/domain/notification"
	"github.com/formhub/backend/internal/domain/shared"
	"github.com/formhub/backend/internal/domain/submission"
)

// ErrSessionClosed is returned when a finished session is used again
var ErrSessionClosed = errors.New("uow: session is closed")

// Repositories gives access to every repository bound to one session
type Repositories interface {
	Users() identity.UserRepository
	Forms() form.FormRepository
	Submissions() submission.SubmissionRepository
	Files() submission.FileRepository
	NotificationChannels() notification.ChannelRepository
}

// Session is a transactional handle. Commit and Rollback end the
// transaction; Close releases it and rolls back anything still open.
type Session interface {
	Repositories
	Commit() error
	Rollback() error
	Close() error
	// IsActive reports whether a transaction is open
	IsActive() bool
}

// SessionFactory opens sessions
type SessionFactory interface {
	OpenSession(ctx context.Context) (Session, error)
}

// EventQueue holds the events published during a request until the
// request's transaction has committed
type EventQueue interface {
	shared.EventPublisher
	// Flush dispatches queued events in publish order
	Flush(ctx context.Context) error
	// Discard drops queued events and returns how many were dropped
	Discard() int
	Pending() int
}

// RequestContext binds the session and event queue of one request
type RequestContext struct {
	Session Session
	Events  EventQueue
}

// NewRequestContext creates a request context
func NewRequestContext(session Session, events EventQueue) *RequestContext {
	return &RequestContext{Session: session, Events: events}
}

// Publish queues the pending events of an aggregate and clears them
func (rc *RequestContext) Publish(ctx context.Context, aggregate interface {
	GetDomainEvents() []shared.DomainEvent
	ClearDomainEvents()
}) error {
	events := aggregate.GetDomainEvents()
	if len(events) == 0 {
		return nil
	}
	if err := rc.Events.Publish(ctx, events...); err != nil {
		return err
	}
	aggregate.ClearDomainEvents()
	return nil
}

type requestContextKey struct{}

// WithRequestContext stores rc in ctx
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// FromContext returns the request context stored in ctx, if any
func FromContext(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc, ok && rc != nil
}
