package notification

import (
	"context"
	"time"
)

// FieldEntry is one line of submitted data in a notification
type FieldEntry struct {
	Label     string
	Value     string
	Type      string
	FileCount int
}

// SubmissionMessage carries everything needed to render a submission notification
type SubmissionMessage struct {
	FormTitle   string
	UserName    string
	UserEmail   string
	SubmittedAt time.Time
	Fields      []FieldEntry
}

// Notifier formats and delivers messages to an external chat service
type Notifier interface {
	// Enabled reports whether the notifier has credentials to deliver anything
	Enabled() bool
	FormatSubmissionMessage(msg SubmissionMessage) string
	// SendNotification returns false when delivery failed
	SendNotification(ctx context.Context, destination, message string) bool
}
