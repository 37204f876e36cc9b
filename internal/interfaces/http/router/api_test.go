package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/formhub/backend/internal/application/files"
	appform "github.com/formhub/backend/internal/application/form"
	appidentity "github.com/formhub/backend/internal/application/identity"
	"github.com/formhub/backend/internal/application/notification"
	appsubmission "github.com/formhub/backend/internal/application/submission"
	"github.com/formhub/backend/internal/domain/identity"
	domainnotification "github.com/formhub/backend/internal/domain/notification"
	"github.com/formhub/backend/internal/domain/shared"
	"github.com/formhub/backend/internal/domain/submission"
	"github.com/formhub/backend/internal/infrastructure/auth"
	"github.com/formhub/backend/internal/infrastructure/config"
	"github.com/formhub/backend/internal/infrastructure/storage"
	"github.com/formhub/backend/internal/interfaces/http/dto"
	"github.com/formhub/backend/internal/testutil"
	"github.com/gin-gonic/gin"
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

func (m *mockNotifier) FormatSubmissionMessage(msg domainnotification.SubmissionMessage) string {
	return m.Called(msg).String(0)
}

func (m *mockNotifier) SendNotification(ctx context.Context, destination, message string) bool {
	return m.Called(ctx, destination, message).Bool(0)
}

// eventRecorder keeps every dispatched event of the given types
type eventRecorder struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (r *eventRecorder) handler(types ...string) shared.EventHandler {
	return shared.EventHandlerFunc{Types: types, Fn: func(_ context.Context, e shared.DomainEvent) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, e)
		return nil
	}}
}

func (r *eventRecorder) snapshot() []shared.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]shared.DomainEvent(nil), r.events...)
}

type envelope[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data"`
	Error   *dto.ErrorInfo `json:"error"`
	Meta    *dto.Meta      `json:"meta"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

type apiFixture struct {
	env      *testutil.Env
	engine   *gin.Engine
	store    *storage.MemoryFileStore
	notifier *mockNotifier
	recorder *eventRecorder
	owner    *identity.User
}

// fileUpload is one part of the "files" field
type fileUpload struct {
	fieldID string
	name    string
	content []byte
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	env := testutil.NewEnv(t)
	log := zaptest.NewLogger(t)
	cfg := &config.Config{
		App:       config.AppConfig{Name: "formhub", Version: "1.0.0", Env: "test"},
		HTTP:      config.HTTPConfig{MaxBodySize: 8 << 20},
		JWT:       config.JWTConfig{Secret: "test-secret-key-at-least-32-chars", AccessTokenExpiration: time.Hour, Issuer: "formhub"},
		Upload:    config.UploadConfig{MaxFileSize: 1 << 20, MaxAvatarSize: 1 << 20},
		Telemetry: config.TelemetryConfig{ServiceName: "formhub"},
	}

	store := storage.NewMemoryFileStore()
	notifier := &mockNotifier{}
	notifier.On("Enabled").Return(true).Maybe()
	recorder := &eventRecorder{}

	env.Bus.Subscribe(notification.NewSubmissionNotificationHandler(env.Sessions, notifier, log))
	env.Bus.Subscribe(files.NewCleanupHandler(store, log))
	env.Bus.Subscribe(recorder.handler(
		submission.EventTypeSubmissionCreated,
		submission.EventTypeSubmissionDeleted,
		identity.EventTypeRespondentCreated,
	))

	engine, err := NewEngine(Dependencies{
		Config:      cfg,
		DB:          env.DB,
		Sessions:    env.Sessions,
		Bus:         env.Bus,
		Tokens:      auth.NewJWTService(cfg.JWT),
		Revocations: auth.NewMemoryRevocationStore(),
		Store:       store,
		Logger:      log,
	})
	require.NoError(t, err)

	return &apiFixture{
		env:      env,
		engine:   engine,
		store:    store,
		notifier: notifier,
		recorder: recorder,
		owner:    env.CreateAdmin(t, "owner@example.com"),
	}
}

func (f *apiFixture) do(method, target, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) doJSON(t *testing.T, method, target, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	return f.do(method, target, token, body, "application/json")
}

func (f *apiFixture) login(t *testing.T, email, password string) string {
	t.Helper()
	w := f.doJSON(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token := decode[appidentity.AuthResult](t, w).Data.AccessToken
	require.NotEmpty(t, token)
	return token
}

func (f *apiFixture) createForm(t *testing.T, token string) appform.FormResponse {
	t.Helper()
	w := f.doJSON(t, http.MethodPost, "/api/v1/forms", token, gin.H{
		"title":       "Contact",
		"description": "Say hello",
		"fields": []gin.H{
			{"field_type": "text", "label": "Full name", "name": "full_name", "is_required": true},
			{"field_type": "email", "label": "Email", "name": "email"},
			{"field_type": "files", "label": "Documents", "name": "documents"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[appform.FormResponse](t, w).Data
}

func (f *apiFixture) enableTelegram(t *testing.T, token string, chatID string) {
	t.Helper()
	w := f.doJSON(t, http.MethodPut, "/api/v1/users/"+f.owner.ID.String()+"/notification-settings", token, gin.H{
		"telegram_chat_id":               chatID,
		"telegram_notifications_enabled": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func (f *apiFixture) submit(t *testing.T, formID uuid.UUID, name, email string, values map[string]string, uploads ...fileUpload) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("user_name", name))
	if email != "" {
		require.NoError(t, mw.WriteField("user_email", email))
	}
	rawValues, err := json.Marshal(values)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("field_values_json", string(rawValues)))

	mapping := map[string]string{}
	for i, u := range uploads {
		mapping[strconv.Itoa(i)] = u.fieldID
		part, err := mw.CreateFormFile("files", u.name)
		require.NoError(t, err)
		_, err = part.Write(u.content)
		require.NoError(t, err)
	}
	if len(uploads) > 0 {
		rawMapping, err := json.Marshal(mapping)
		require.NoError(t, err)
		require.NoError(t, mw.WriteField("file_fields_json", string(rawMapping)))
	}
	require.NoError(t, mw.Close())

	return f.do(http.MethodPost, "/api/v1/forms/"+formID.String()+"/submit", "", &buf, mw.FormDataContentType())
}

func (f *apiFixture) count(t *testing.T, formID uuid.UUID) int64 {
	t.Helper()
	w := f.do(http.MethodGet, "/api/v1/forms/"+formID.String()+"/submissions/count", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[struct {
		Count int64 `json:"count"`
	}](t, w).Data.Count
}

func fieldID(t *testing.T, f appform.FormResponse, name string) string {
	t.Helper()
	for _, field := range f.Fields {
		if field.Name == name {
			return field.ID.String()
		}
	}
	t.Fatalf("form has no field %q", name)
	return ""
}

func eventTypes(events []shared.DomainEvent) []string {
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.EventType())
	}
	return types
}

func TestAPI_RootAndHealth(t *testing.T) {
	fx := newAPIFixture(t)

	w := fx.do(http.MethodGet, "/", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Form Manager API","version":"1.0.0"}`, w.Body.String())

	w = fx.do(http.MethodGet, "/health", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestAPI_ProtectedRoutesRequireToken(t *testing.T) {
	fx := newAPIFixture(t)

	for _, target := range []string{
		"/api/v1/users",
		"/api/v1/admin/" + fx.owner.ID.String() + "/forms",
		"/api/v1/submissions/" + uuid.NewString(),
		"/api/v1/files/" + uuid.NewString() + "/view",
	} {
		w := fx.do(http.MethodGet, target, "", nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, target)
	}
}

func TestAPI_AdminOnboarding(t *testing.T) {
	fx := newAPIFixture(t)
	fx.env.CreateSuperAdmin(t, "root@example.com")
	superToken := fx.login(t, "root@example.com", "secret123")

	w := fx.doJSON(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email": "new.admin@example.com", "password": "hunter22", "name": "New Admin", "is_admin": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	registered := decode[appidentity.AuthResult](t, w).Data
	assert.Empty(t, registered.AccessToken)
	assert.False(t, registered.User.IsApproved)

	w = fx.doJSON(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "new.admin@example.com", "password": "hunter22"})
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	assert.Equal(t, dto.ErrCodePendingApproval, decode[any](t, w).Error.Code)

	w = fx.do(http.MethodGet, "/api/v1/super-admin/unapproved-admins", superToken, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	pending := decode[[]appidentity.UserInfo](t, w).Data
	require.Len(t, pending, 1)
	assert.Equal(t, registered.User.ID, pending[0].ID)

	ownerToken := fx.login(t, "owner@example.com", "secret123")
	w = fx.do(http.MethodPost, "/api/v1/super-admin/admins/"+registered.User.ID.String()+"/approve", ownerToken, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = fx.do(http.MethodPost, "/api/v1/super-admin/admins/"+registered.User.ID.String()+"/approve", superToken, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	token := fx.login(t, "new.admin@example.com", "hunter22")
	w = fx.do(http.MethodGet, "/api/v1/auth/me", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[appidentity.UserInfo](t, w).Data.IsApproved)

	w = fx.do(http.MethodPost, "/api/v1/auth/logout", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	w = fx.do(http.MethodGet, "/api/v1/auth/me", token, nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPI_SubmissionNotifiesOwnerOnce(t *testing.T) {
	fx := newAPIFixture(t)
	token := fx.login(t, "owner@example.com", "secret123")
	form := fx.createForm(t, token)
	fx.enableTelegram(t, token, "424242")

	var formatted domainnotification.SubmissionMessage
	fx.notifier.On("FormatSubmissionMessage", mock.Anything).
		Run(func(args mock.Arguments) { formatted = args.Get(0).(domainnotification.SubmissionMessage) }).
		Return("rendered").Once()
	fx.notifier.On("SendNotification", mock.Anything, "424242", "rendered").Return(true).Once()

	w := fx.submit(t, form.ID, "Jane Doe", "jane@example.com",
		map[string]string{fieldID(t, form, "full_name"): "Jane Doe"},
		fileUpload{fieldID: fieldID(t, form, "documents"), name: "cv.txt", content: []byte("curriculum vitae")},
	)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decode[appsubmission.SubmissionResponse](t, w).Data
	require.Len(t, created.Files, 1)

	var createdEvents []*submission.SubmissionCreatedEvent
	for _, e := range fx.recorder.snapshot() {
		if ev, ok := e.(*submission.SubmissionCreatedEvent); ok {
			createdEvents = append(createdEvents, ev)
		}
	}
	require.Len(t, createdEvents, 1)
	assert.Equal(t, created.ID, createdEvents[0].SubmissionID)
	assert.Equal(t, []string{identity.EventTypeRespondentCreated, submission.EventTypeSubmissionCreated},
		eventTypes(fx.recorder.snapshot()))

	// The notifier read the submission through its own session, so it was committed first
	fx.notifier.AssertExpectations(t)
	assert.Equal(t, "Contact", formatted.FormTitle)
	assert.Equal(t, "Jane Doe", formatted.UserName)
	assert.Equal(t, "jane@example.com", formatted.UserEmail)

	w = fx.do(http.MethodGet, "/api/v1/files/"+created.Files[0].ID.String()+"/view", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "curriculum vitae", w.Body.String())
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Disposition"), "inline; "), w.Header().Get("Content-Disposition"))
}

func TestAPI_DeliveryFailureStillSucceeds(t *testing.T) {
	fx := newAPIFixture(t)
	token := fx.login(t, "owner@example.com", "secret123")
	form := fx.createForm(t, token)
	fx.enableTelegram(t, token, "424242")

	fx.notifier.On("FormatSubmissionMessage", mock.Anything).Return("rendered").Once()
	fx.notifier.On("SendNotification", mock.Anything, "424242", "rendered").Return(false).Once()

	w := fx.submit(t, form.ID, "Jane Doe", "", map[string]string{fieldID(t, form, "full_name"): "Jane Doe"})

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[appsubmission.SubmissionResponse](t, w).Success)
	fx.notifier.AssertExpectations(t)
	assert.Equal(t, int64(1), fx.count(t, form.ID))
}

func TestAPI_InvalidFieldReferenceRollsBack(t *testing.T) {
	fx := newAPIFixture(t)
	token := fx.login(t, "owner@example.com", "secret123")
	form := fx.createForm(t, token)
	fx.enableTelegram(t, token, "424242")

	tests := []struct {
		name    string
		email   string
		values  map[string]string
		uploads []fileUpload
	}{
		{
			name:  "unknown field value",
			email: "jane@example.com",
			values: map[string]string{
				fieldID(t, form, "full_name"): "Jane Doe",
				uuid.NewString():              "stray",
			},
		},
		{
			name:    "file for unknown field",
			email:   "john@example.com",
			values:  map[string]string{fieldID(t, form, "full_name"): "Jane Doe"},
			uploads: []fileUpload{{fieldID: uuid.NewString(), name: "cv.txt", content: []byte("cv")}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// A new respondent email makes the submission queue an event before it fails
			w := fx.submit(t, form.ID, "Jane Doe", tt.email, tt.values, tt.uploads...)

			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, dto.ErrCodeInvalidFieldReference, decode[any](t, w).Error.Code)
		})
	}

	assert.Empty(t, fx.recorder.snapshot())
	fx.notifier.AssertNotCalled(t, "SendNotification", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, fx.store.Keys())
	assert.Zero(t, fx.count(t, form.ID))

	w := fx.do(http.MethodGet, "/api/v1/admin/"+fx.owner.ID.String()+"/users", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]appidentity.UserInfo](t, w).Data)
}

func TestAPI_UnmappedFileIsRejected(t *testing.T) {
	fx := newAPIFixture(t)
	token := fx.login(t, "owner@example.com", "secret123")
	form := fx.createForm(t, token)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("user_name", "Jane"))
	require.NoError(t, mw.WriteField("field_values_json", `{"`+fieldID(t, form, "full_name")+`": "Jane"}`))
	part, err := mw.CreateFormFile("files", "orphan.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte("orphan"))
	require.NoError(t, mw.Close())

	w := fx.do(http.MethodPost, "/api/v1/forms/"+form.ID.String()+"/submit", "", &buf, mw.FormDataContentType())

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidFieldReference, decode[any](t, w).Error.Code)
	assert.Zero(t, fx.count(t, form.ID))
}

func TestAPI_ReviewSearchAndExport(t *testing.T) {
	fx := newAPIFixture(t)
	token := fx.login(t, "owner@example.com", "secret123")
	form := fx.createForm(t, token)

	var ids []uuid.UUID
	for _, name := range []string{"Jane Doe", "John Roe", "Janet Poe"} {
		w := fx.submit(t, form.ID, name, "", map[string]string{fieldID(t, form, "full_name"): name})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		ids = append(ids, decode[appsubmission.SubmissionResponse](t, w).Data.ID)
	}

	t.Run("list by form pages", func(t *testing.T) {
		w := fx.do(http.MethodGet, "/api/v1/forms/"+form.ID.String()+"/submissions?skip=1&limit=1", token, nil, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decode[[]appsubmission.SubmissionResponse](t, w)
		assert.Len(t, resp.Data, 1)
		assert.Equal(t, dto.Meta{Total: 3, Skip: 1, Limit: 1}, *resp.Meta)
	})

	t.Run("search by respondent name", func(t *testing.T) {
		w := fx.do(http.MethodGet, "/api/v1/admin/"+fx.owner.ID.String()+"/submissions?user_name=jan", token, nil, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decode[[]appsubmission.SubmissionResponse](t, w)
		assert.Equal(t, int64(2), resp.Meta.Total)
		assert.Equal(t, 10, resp.Meta.Limit)
		for _, row := range resp.Data {
			assert.Equal(t, "Contact", row.FormTitle)
		}
	})

	t.Run("search rejects malformed dates", func(t *testing.T) {
		w := fx.do(http.MethodGet, "/api/v1/admin/"+fx.owner.ID.String()+"/submissions?date_from=yesterday", token, nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("detail", func(t *testing.T) {
		w := fx.do(http.MethodGet, "/api/v1/submissions/"+ids[0].String(), token, nil, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		detail := decode[appsubmission.SubmissionResponse](t, w).Data
		require.NotNil(t, detail.Form)
		assert.Equal(t, form.ID, detail.Form.ID)
		require.NotNil(t, detail.User)
		assert.Equal(t, "Jane Doe", detail.User.Name)
	})

	t.Run("csv export", func(t *testing.T) {
		w := fx.do(http.MethodGet, "/api/v1/submissions/"+ids[0].String()+"/export?format=csv&locale=uk", token, nil, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
		assert.True(t, strings.HasPrefix(w.Header().Get("Content-Disposition"), `attachment; filename="Contact_Jane Doe_`))
		assert.True(t, strings.HasPrefix(w.Body.String(), "\ufeff"))
	})

	t.Run("xlsx export", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/submissions/"+ids[0].String()+"/export?format=xlsx", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept-Language", "uk-UA,uk;q=0.9")
		w := httptest.NewRecorder()
		fx.engine.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, appsubmission.FormatXLSX.ContentType(), w.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
	})

	t.Run("unknown export format", func(t *testing.T) {
		w := fx.do(http.MethodGet, "/api/v1/submissions/"+ids[0].String()+"/export?format=pdf", token, nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("other admins are forbidden", func(t *testing.T) {
		fx.env.CreateAdmin(t, "stranger@example.com")
		stranger := fx.login(t, "stranger@example.com", "secret123")

		w := fx.do(http.MethodGet, "/api/v1/submissions/"+ids[0].String(), stranger, nil, "")
		assert.Equal(t, http.StatusForbidden, w.Code)
		w = fx.do(http.MethodGet, "/api/v1/forms/"+form.ID.String()+"/submissions", stranger, nil, "")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestAPI_DeleteSubmissionReleasesFiles(t *testing.T) {
	fx := newAPIFixture(t)
	token := fx.login(t, "owner@example.com", "secret123")
	form := fx.createForm(t, token)

	w := fx.submit(t, form.ID, "Jane Doe", "", map[string]string{fieldID(t, form, "full_name"): "Jane Doe"},
		fileUpload{fieldID: fieldID(t, form, "documents"), name: "a.txt", content: []byte("a")},
		fileUpload{fieldID: fieldID(t, form, "documents"), name: "b.txt", content: []byte("b")},
	)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decode[appsubmission.SubmissionResponse](t, w).Data
	require.Len(t, fx.store.Keys(), 2)

	w = fx.do(http.MethodDelete, "/api/v1/submissions/"+created.ID.String(), token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Empty(t, fx.store.Keys())
	assert.Zero(t, fx.count(t, form.ID))
	w = fx.do(http.MethodGet, "/api/v1/files/"+created.Files[0].ID.String()+"/view", token, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_PublicFormIsReadableWithoutToken(t *testing.T) {
	fx := newAPIFixture(t)
	token := fx.login(t, "owner@example.com", "secret123")
	form := fx.createForm(t, token)

	w := fx.do(http.MethodGet, "/api/v1/forms/"+form.ID.String(), "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[appform.FormResponse](t, w).Data
	assert.Equal(t, "Contact", got.Title)
	assert.Len(t, got.Fields, 3)

	w = fx.doJSON(t, http.MethodPut, "/api/v1/forms/"+form.ID.String(), "", gin.H{"title": "Hijacked"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
