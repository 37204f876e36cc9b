package telegram

import (
	"context"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/formhub/backend/internal/domain/notification"
	"github.com/formhub/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const (
	maxValueLength  = 100
	timestampLayout = "2006-01-02 15:04:05"
)

// Service delivers notifications through the Bot API
type Service struct {
	client *Client
	logger *zap.Logger
}

var _ notification.Notifier = (*Service)(nil)

// NewService wraps a client. A client without a token yields a disabled notifier.
func NewService(client *Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, logger: logger}
}

// Enabled reports whether a bot token is configured
func (s *Service) Enabled() bool {
	return s.client != nil && s.client.token != ""
}

// SendNotification sends an HTML message and reports success
func (s *Service) SendNotification(ctx context.Context, chatID, message string) bool {
	if !s.Enabled() {
		s.logger.Warn("telegram bot token not configured, notification skipped")
		return false
	}
	ctx, span := telemetry.StartSpan(ctx, "telegram.send_message",
		telemetry.WithAttribute(telemetry.AttrChatID, chatID),
	)
	defer span.End()

	if err := s.client.SendMessage(ctx, chatID, message); err != nil {
		telemetry.RecordError(span, err)
		telemetry.SetAttribute(span, telemetry.AttrDelivered, false)
		s.logger.Error("failed to send telegram notification",
			zap.String("chat_id", chatID),
			zap.Error(err),
		)
		return false
	}
	telemetry.SetAttribute(span, telemetry.AttrDelivered, true)
	s.logger.Debug("telegram notification sent", zap.String("chat_id", chatID))
	return true
}

// FormatSubmissionMessage renders a new-submission alert. Every user supplied
// string is escaped for Telegram's HTML parse mode.
func (s *Service) FormatSubmissionMessage(msg notification.SubmissionMessage) string {
	var b strings.Builder

	b.WriteString("🔔 <b>New Submission!</b>\n\n")
	fmt.Fprintf(&b, "📋 <b>Form:</b> %s\n", html.EscapeString(msg.FormTitle))
	fmt.Fprintf(&b, "👤 <b>Submitted by:</b> %s", html.EscapeString(msg.UserName))
	if msg.UserEmail != "" {
		fmt.Fprintf(&b, "\n📧 <b>Email:</b> %s", html.EscapeString(msg.UserEmail))
	}
	fmt.Fprintf(&b, "\n⏰ <b>Time:</b> %s\n", msg.SubmittedAt.Format(timestampLayout))

	if len(msg.Fields) > 0 {
		b.WriteString("\n\n<b>📝 Submitted Data:</b>\n")
		for _, f := range msg.Fields {
			fmt.Fprintf(&b, "\n• <b>%s:</b> %s", html.EscapeString(f.Label), formatFieldValue(f))
		}
	}

	return strings.TrimSpace(b.String())
}

func formatFieldValue(f notification.FieldEntry) string {
	switch {
	case f.Type == "file" || f.Type == "files":
		return fmt.Sprintf("📎 %d file(s) uploaded", f.FileCount)
	case f.Type == "signature":
		return "✍️ [Digital Signature]"
	case strings.TrimSpace(f.Value) == "":
		return "<i>Not provided</i>"
	}
	return html.EscapeString(truncate(f.Value, maxValueLength))
}

// truncate works on runes before escaping so an entity is never cut in half
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-3]) + "..."
}
