package telegram

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/formhub/backend/internal/domain/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Disabled(t *testing.T) {
	svc := NewService(NewClient(""), nil)
	assert.False(t, svc.Enabled())
	assert.False(t, svc.SendNotification(context.Background(), "1", "hello"))
}

func TestService_SendNotification(t *testing.T) {
	api, srv := newFakeAPI(t)
	svc := NewService(NewClient(testToken, WithBaseURL(srv.URL)), nil)

	assert.True(t, svc.Enabled())
	assert.True(t, svc.SendNotification(context.Background(), "42", "hello"))
	assert.Len(t, api.callsTo("sendMessage"), 1)

	api.set(func(a *fakeAPI) { a.failSend = true })
	assert.False(t, svc.SendNotification(context.Background(), "42", "hello"))
}

func TestService_FormatSubmissionMessage(t *testing.T) {
	svc := NewService(nil, nil)
	submittedAt := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

	t.Run("header only", func(t *testing.T) {
		msg := svc.FormatSubmissionMessage(notification.SubmissionMessage{
			FormTitle:   "Contact",
			UserName:    "Alice",
			SubmittedAt: submittedAt,
		})
		assert.Equal(t, "🔔 <b>New Submission!</b>\n\n"+
			"📋 <b>Form:</b> Contact\n"+
			"👤 <b>Submitted by:</b> Alice\n"+
			"⏰ <b>Time:</b> 2024-03-05 14:07:09", msg)
	})

	t.Run("fields and email", func(t *testing.T) {
		msg := svc.FormatSubmissionMessage(notification.SubmissionMessage{
			FormTitle:   "Contact",
			UserName:    "Alice",
			UserEmail:   "alice@example.com",
			SubmittedAt: submittedAt,
			Fields: []notification.FieldEntry{
				{Label: "Name", Value: "Bob", Type: "text"},
				{Label: "Notes", Value: "", Type: "textarea"},
				{Label: "Docs", Type: "file", FileCount: 2},
				{Label: "Sign", Value: "data:image/png;base64,AAA", Type: "signature"},
			},
		})
		assert.Contains(t, msg, "📧 <b>Email:</b> alice@example.com")
		assert.Contains(t, msg, "<b>📝 Submitted Data:</b>")
		assert.Contains(t, msg, "• <b>Name:</b> Bob")
		assert.Contains(t, msg, "• <b>Notes:</b> <i>Not provided</i>")
		assert.Contains(t, msg, "• <b>Docs:</b> 📎 2 file(s) uploaded")
		assert.Contains(t, msg, "• <b>Sign:</b> ✍️ [Digital Signature]")
		assert.NotContains(t, msg, "base64")
	})

	t.Run("escapes user input", func(t *testing.T) {
		msg := svc.FormatSubmissionMessage(notification.SubmissionMessage{
			FormTitle:   "<script>",
			UserName:    "Tom & Jerry",
			SubmittedAt: submittedAt,
			Fields: []notification.FieldEntry{
				{Label: "<b>x</b>", Value: "a < b", Type: "text"},
			},
		})
		assert.Contains(t, msg, "&lt;script&gt;")
		assert.Contains(t, msg, "Tom &amp; Jerry")
		assert.Contains(t, msg, "• <b>&lt;b&gt;x&lt;/b&gt;:</b> a &lt; b")
	})

	t.Run("long values are truncated", func(t *testing.T) {
		long := strings.Repeat("&", 150)
		msg := svc.FormatSubmissionMessage(notification.SubmissionMessage{
			FormTitle:   "F",
			UserName:    "U",
			SubmittedAt: submittedAt,
			Fields:      []notification.FieldEntry{{Label: "L", Value: long, Type: "text"}},
		})
		want := strings.Repeat("&amp;", 97) + "..."
		assert.True(t, strings.HasSuffix(msg, want))
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 100))
	exact := strings.Repeat("я", 100)
	assert.Equal(t, exact, truncate(exact, 100))

	got := truncate(strings.Repeat("я", 101), 100)
	require.Equal(t, 100, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))
}
