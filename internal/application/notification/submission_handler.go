package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/formhub/backend/internal/application/uow"
	"github.com/formhub/backend/internal/domain/form"
	"github.com/formhub/backend/internal/domain/notification"
	"github.com/formhub/backend/internal/domain/shared"
	"github.com/formhub/backend/internal/domain/submission"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// SubmissionNotificationHandler tells a form's owner about new submissions
// through their Telegram channel. It runs after the submitting request has
// committed and reads through a session of its own.
type SubmissionNotificationHandler struct {
	sessions uow.SessionFactory
	notifier notification.Notifier
	logger   *zap.Logger
}

// NewSubmissionNotificationHandler creates the handler
func NewSubmissionNotificationHandler(
	sessions uow.SessionFactory,
	notifier notification.Notifier,
	logger *zap.Logger,
) *SubmissionNotificationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionNotificationHandler{
		sessions: sessions,
		notifier: notifier,
		logger:   logger.Named("submission_notifications"),
	}
}

// EventTypes returns the event types this handler is interested in
func (h *SubmissionNotificationHandler) EventTypes() []string {
	return []string{submission.EventTypeSubmissionCreated}
}

// Handle processes a SubmissionCreatedEvent
func (h *SubmissionNotificationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	created, ok := event.(*submission.SubmissionCreatedEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", submission.EventTypeSubmissionCreated),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			submission.EventTypeSubmissionCreated, event.EventType())
	}

	log := h.logger.With(zap.String("submission_id", created.SubmissionID.String()))

	// Read only; the session is never committed
	session, err := h.sessions.OpenSession(ctx)
	if err != nil {
		return fmt.Errorf("open session for notification: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn("failed to close notification session", zap.Error(err))
		}
	}()

	sub, err := session.Submissions().FindByID(ctx, created.SubmissionID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			log.Warn("submission not found, skipping notification")
			return nil
		}
		return err
	}

	f, err := session.Forms().FindByID(ctx, sub.FormID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			log.Warn("form not found, skipping notification", zap.String("form_id", sub.FormID.String()))
			return nil
		}
		return err
	}

	admin, err := session.Users().FindByID(ctx, f.CreatorID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			log.Warn("form owner not found, skipping notification", zap.String("admin_id", f.CreatorID.String()))
			return nil
		}
		return err
	}

	channel, err := session.NotificationChannels().FindByUserAndType(ctx, admin.ID, notification.ChannelTypeTelegram)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			log.Info("telegram notifications not configured", zap.String("admin_id", admin.ID.String()))
			return nil
		}
		return err
	}
	if !channel.IsEnabled {
		log.Info("telegram notifications disabled", zap.String("admin_id", admin.ID.String()))
		return nil
	}
	if channel.ChatID == "" {
		log.Warn("telegram chat id not set", zap.String("admin_id", admin.ID.String()))
		return nil
	}

	msg := notification.SubmissionMessage{
		FormTitle:   f.Title,
		UserName:    "Unknown User",
		SubmittedAt: sub.SubmittedAt,
		Fields:      fieldEntries(f, sub),
	}
	if user, err := session.Users().FindByID(ctx, sub.UserID); err == nil {
		msg.UserName = user.Name
		msg.UserEmail = user.Email
	} else if !errors.Is(err, shared.ErrNotFound) {
		return err
	}

	text := h.notifier.FormatSubmissionMessage(msg)
	if !h.notifier.SendNotification(ctx, channel.ChatID, text) {
		log.Error("failed to send telegram notification",
			zap.String("admin_id", admin.ID.String()),
			zap.String("chat_id", channel.ChatID),
		)
		return nil
	}

	log.Info("telegram notification sent", zap.String("admin_id", admin.ID.String()))
	return nil
}

// fieldEntries lists answers in submission order followed by one entry per
// upload field, in form order. Answers to fields no longer on the form are
// left out.
func fieldEntries(f *form.Form, sub *submission.Submission) []notification.FieldEntry {
	entries := make([]notification.FieldEntry, 0, len(sub.Values)+len(sub.Files))
	for _, v := range sub.Values {
		field, ok := f.FieldByID(v.FieldID)
		if !ok {
			continue
		}
		entries = append(entries, notification.FieldEntry{
			Label: field.Label,
			Value: v.Value,
			Type:  string(field.Type),
		})
	}

	withField := lo.Filter(sub.Files, func(file submission.File, _ int) bool { return file.FieldID != nil })
	byField := lo.GroupBy(withField, func(file submission.File) uuid.UUID { return *file.FieldID })
	for _, field := range f.Fields {
		files, ok := byField[field.ID]
		if !ok {
			continue
		}
		entries = append(entries, notification.FieldEntry{
			Label:     field.Label,
			Type:      string(form.FieldTypeFile),
			FileCount: len(files),
		})
	}
	return entries
}

// Ensure SubmissionNotificationHandler implements shared.EventHandler
var _ shared.EventHandler = (*SubmissionNotificationHandler)(nil)
