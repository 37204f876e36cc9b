package identity

import (
	"context"
	"fmt"

	"github.com/formhub/backend/internal/domain/identity"
	"github.com/formhub/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// RespondentAuditHandler writes an audit log entry for every respondent
// account created by a public submission
type RespondentAuditHandler struct {
	logger *zap.Logger
}

// NewRespondentAuditHandler creates the handler
func NewRespondentAuditHandler(logger *zap.Logger) *RespondentAuditHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RespondentAuditHandler{logger: logger.Named("audit")}
}

// EventTypes returns the event types this handler is interested in
func (h *RespondentAuditHandler) EventTypes() []string {
	return []string{identity.EventTypeRespondentCreated}
}

// Handle logs the new respondent
func (h *RespondentAuditHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	created, ok := event.(*identity.RespondentCreatedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}
	h.logger.Info("Respondent registered",
		zap.String("user_id", created.UserID.String()),
		zap.String("admin_id", created.AdminID.String()),
		zap.Time("occurred_at", created.OccurredAt()),
	)
	return nil
}
