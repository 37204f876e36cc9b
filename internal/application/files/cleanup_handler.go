package files

import (
	"context"
	"fmt"

	"github.com/formhub/backend/internal/domain/form"
	"github.com/formhub/backend/internal/domain/shared"
	"github.com/formhub/backend/internal/domain/submission"
	"go.uber.org/zap"
)

// blobReleaser is implemented by events whose stored objects lost their records
type blobReleaser interface {
	StoredBlobs() []string
}

// CleanupHandler deletes stored uploads once the deletion of their
// records has committed
type CleanupHandler struct {
	store  Store
	logger *zap.Logger
}

// NewCleanupHandler creates the handler
func NewCleanupHandler(store Store, logger *zap.Logger) *CleanupHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CleanupHandler{store: store, logger: logger.Named("file_cleanup")}
}

// EventTypes returns the event types this handler is interested in
func (h *CleanupHandler) EventTypes() []string {
	return []string{form.EventTypeFormDeleted, submission.EventTypeSubmissionDeleted}
}

// Handle removes every blob listed on the event. Failures are logged and
// the remaining blobs are still attempted.
func (h *CleanupHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	released, ok := event.(blobReleaser)
	if !ok {
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}

	failed := 0
	for _, key := range released.StoredBlobs() {
		if err := h.store.Delete(ctx, key); err != nil {
			failed++
			h.logger.Warn("Failed to delete stored file", zap.String("key", key), zap.Error(err))
		}
	}
	h.logger.Debug("Stored files removed",
		zap.String("event_type", event.EventType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.Int("deleted", len(released.StoredBlobs())-failed),
		zap.Int("failed", failed),
	)
	return nil
}

// Ensure CleanupHandler implements shared.EventHandler
var _ shared.EventHandler = (*CleanupHandler)(nil)
