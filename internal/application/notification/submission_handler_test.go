package notification

import (
	"context"
	"testing"
	"time"

	"github.com/formhub/backend/internal/application/uow"
	"github.com/formhub/backend/internal/domain/form"
	"github.com/formhub/backend/internal/domain/identity"
	"github.com/formhub/backend/internal/domain/notification"
	"github.com/formhub/backend/internal/domain/shared"
	"github.com/formhub/backend/internal/domain/submission"
	"github.com/formhub/backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Enabled() bool {
	return m.Called().Bool(0)
}

func (m *mockNotifier) FormatSubmissionMessage(msg notification.SubmissionMessage) string {
	return m.Called(msg).String(0)
}

func (m *mockNotifier) SendNotification(ctx context.Context, destination, message string) bool {
	return m.Called(ctx, destination, message).Bool(0)
}

type handlerFixture struct {
	env        *testutil.Env
	admin      *identity.User
	respondent *identity.User
	form       *form.Form
	submission *submission.Submission
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	env := testutil.NewEnv(t)
	admin := env.CreateAdmin(t, "owner@example.com")
	f := env.CreateForm(t, admin, "Contact us", testutil.ContactFormFields()...)

	respondent, err := identity.NewRespondent("jane@example.com", "Jane Doe", &admin.ID)
	require.NoError(t, err)

	sub := submission.New(f.ID, respondent.ID)
	require.NoError(t, sub.AddValue(f, f.Fields[0].ID, "Jane Doe"))
	require.NoError(t, sub.AddValue(f, f.Fields[1].ID, "jane@example.com"))
	docs := f.Fields[2].ID
	for _, name := range []string{"a.pdf", "b.pdf"} {
		sub.AttachFile(submission.File{
			ID:               uuid.New(),
			FieldID:          &docs,
			OriginalFilename: name,
			BlobName:         submission.BlobKey(sub.ID, docs, name),
			ContentType:      "application/pdf",
			FileSize:         10,
			UploadedAt:       time.Now(),
		})
	}

	env.Seed(t, func(rc *uow.RequestContext) {
		ctx := context.Background()
		require.NoError(t, rc.Session.Users().Create(ctx, respondent))
		require.NoError(t, rc.Session.Submissions().Create(ctx, sub))
	})

	return &handlerFixture{env: env, admin: admin, respondent: respondent, form: f, submission: sub}
}

func (f *handlerFixture) saveChannel(t *testing.T, chatID string, enabled bool) {
	t.Helper()
	channel := notification.NewTelegramChannel(f.admin.ID)
	channel.ChatID = chatID
	channel.IsEnabled = enabled
	f.env.Seed(t, func(rc *uow.RequestContext) {
		require.NoError(t, rc.Session.NotificationChannels().Save(context.Background(), channel))
	})
}

func (f *handlerFixture) event() *submission.SubmissionCreatedEvent {
	return submission.NewSubmissionCreatedEvent(f.submission, f.form.CreatorID)
}

func TestSubmissionNotificationHandler_EventTypes(t *testing.T) {
	handler := NewSubmissionNotificationHandler(nil, nil, nil)
	assert.Equal(t, []string{submission.EventTypeSubmissionCreated}, handler.EventTypes())
}

func TestSubmissionNotificationHandler_Handle(t *testing.T) {
	t.Run("sends to the owner's chat", func(t *testing.T) {
		fx := newHandlerFixture(t)
		fx.saveChannel(t, "12345", true)

		notifier := &mockNotifier{}
		notifier.On("FormatSubmissionMessage", mock.MatchedBy(func(msg notification.SubmissionMessage) bool {
			return msg.FormTitle == "Contact us" &&
				msg.UserName == "Jane Doe" &&
				msg.UserEmail == "jane@example.com" &&
				len(msg.Fields) == 3
		})).Return("rendered").Once()
		notifier.On("SendNotification", mock.Anything, "12345", "rendered").Return(true).Once()

		handler := NewSubmissionNotificationHandler(fx.env.Sessions, notifier, zaptest.NewLogger(t))
		require.NoError(t, handler.Handle(context.Background(), fx.event()))
		notifier.AssertExpectations(t)
	})

	t.Run("delivery failure is swallowed", func(t *testing.T) {
		fx := newHandlerFixture(t)
		fx.saveChannel(t, "12345", true)

		notifier := &mockNotifier{}
		notifier.On("FormatSubmissionMessage", mock.Anything).Return("rendered")
		notifier.On("SendNotification", mock.Anything, "12345", "rendered").Return(false).Once()

		handler := NewSubmissionNotificationHandler(fx.env.Sessions, notifier, zaptest.NewLogger(t))
		assert.NoError(t, handler.Handle(context.Background(), fx.event()))
		notifier.AssertExpectations(t)
	})

	skips := []struct {
		name    string
		prepare func(t *testing.T, fx *handlerFixture)
		event   func(fx *handlerFixture) shared.DomainEvent
	}{
		{
			name:    "no channel",
			prepare: func(t *testing.T, fx *handlerFixture) {},
		},
		{
			name:    "channel disabled",
			prepare: func(t *testing.T, fx *handlerFixture) { fx.saveChannel(t, "12345", false) },
		},
		{
			name:    "chat id missing",
			prepare: func(t *testing.T, fx *handlerFixture) { fx.saveChannel(t, "", true) },
		},
		{
			name:    "submission gone",
			prepare: func(t *testing.T, fx *handlerFixture) { fx.saveChannel(t, "12345", true) },
			event: func(fx *handlerFixture) shared.DomainEvent {
				return submission.NewSubmissionCreatedEvent(submission.New(fx.form.ID, fx.respondent.ID), fx.admin.ID)
			},
		},
	}
	for _, tt := range skips {
		t.Run(tt.name, func(t *testing.T) {
			fx := newHandlerFixture(t)
			tt.prepare(t, fx)

			var ev shared.DomainEvent = fx.event()
			if tt.event != nil {
				ev = tt.event(fx)
			}

			notifier := &mockNotifier{}
			handler := NewSubmissionNotificationHandler(fx.env.Sessions, notifier, zaptest.NewLogger(t))
			require.NoError(t, handler.Handle(context.Background(), ev))
			notifier.AssertNotCalled(t, "SendNotification", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("session is released", func(t *testing.T) {
		fx := newHandlerFixture(t)
		handler := NewSubmissionNotificationHandler(fx.env.Sessions, &mockNotifier{}, zaptest.NewLogger(t))
		require.NoError(t, handler.Handle(context.Background(), fx.event()))

		// sqlite allows one connection; a leaked session would block here
		rc := fx.env.Begin(t)
		require.NoError(t, rc.Session.Close())
	})

	t.Run("unexpected event type", func(t *testing.T) {
		handler := NewSubmissionNotificationHandler(nil, &mockNotifier{}, zaptest.NewLogger(t))
		ev := shared.NewBaseDomainEvent("SomethingElse", "Other", uuid.New(), uuid.New())
		assert.Error(t, handler.Handle(context.Background(), &ev))
	})
}

func TestFieldEntries(t *testing.T) {
	f, err := form.NewForm(uuid.New(), "Survey", "", testutil.ContactFormFields())
	require.NoError(t, err)

	sub := submission.New(f.ID, uuid.New())
	require.NoError(t, sub.AddValue(f, f.Fields[0].ID, "Jane"))
	stray := uuid.New()
	sub.Values = append(sub.Values, submission.FieldValue{ID: uuid.New(), FieldID: stray, Value: "orphan"})
	docs := f.Fields[2].ID
	sub.AttachFile(submission.File{ID: uuid.New(), FieldID: &docs, OriginalFilename: "a.txt"})
	sub.AttachFile(submission.File{ID: uuid.New(), FieldID: &docs, OriginalFilename: "b.txt"})
	sub.AttachFile(submission.File{ID: uuid.New(), OriginalFilename: "loose.txt"})

	entries := fieldEntries(f, sub)
	require.Len(t, entries, 2)

	assert.Equal(t, notification.FieldEntry{Label: "Full name", Value: "Jane", Type: "text"}, entries[0])
	assert.Equal(t, notification.FieldEntry{Label: "Documents", Type: "file", FileCount: 2}, entries[1])
}
