// Package testutil wires an in-memory database and unit of work for tests
// that cross package boundaries.
package testutil

import (
	"context"
	"testing"

	"github.com/formhub/backend/internal/application/uow"
	"github.com/formhub/backend/internal/domain/form"
	"github.com/formhub/backend/internal/domain/identity"
	"github.com/formhub/backend/internal/infrastructure/config"
	"github.com/formhub/backend/internal/infrastructure/event"
	"github.com/formhub/backend/internal/infrastructure/persistence"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// NewDatabase opens a migrated in-memory sqlite database closed on cleanup
func NewDatabase(t testing.TB) *persistence.Database {
	t.Helper()
	db, err := persistence.NewDatabase(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.AutoMigrate())
	return db
}

// Env bundles what request-scoped services need in tests
type Env struct {
	DB       *persistence.Database
	Sessions *persistence.GormSessionFactory
	Bus      *event.EventBus
}

// NewEnv creates a database, session factory and event bus
func NewEnv(t testing.TB) *Env {
	t.Helper()
	db := NewDatabase(t)
	return &Env{
		DB:       db,
		Sessions: persistence.NewGormSessionFactory(db.DB),
		Bus:      event.NewEventBus(zaptest.NewLogger(t)),
	}
}

// Begin opens a request context. Its session is closed on cleanup.
func (e *Env) Begin(t testing.TB) *uow.RequestContext {
	t.Helper()
	session, err := e.Sessions.OpenSession(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return uow.NewRequestContext(session, event.NewDeferredEventBus(e.Bus))
}

// Commit commits rc and flushes its events
func (e *Env) Commit(t testing.TB, rc *uow.RequestContext) {
	t.Helper()
	require.NoError(t, rc.Session.Commit())
	require.NoError(t, rc.Events.Flush(context.Background()))
}

// Seed runs fn in its own committed request context
func (e *Env) Seed(t testing.TB, fn func(rc *uow.RequestContext)) {
	t.Helper()
	rc := e.Begin(t)
	fn(rc)
	e.Commit(t, rc)
	require.NoError(t, rc.Session.Close())
}

// CreateAdmin stores an approved administrator
func (e *Env) CreateAdmin(t testing.TB, email string) *identity.User {
	t.Helper()
	u, err := identity.NewUser(email, "Admin "+email, "secret123", true)
	require.NoError(t, err)
	require.NoError(t, u.Approve())
	e.Seed(t, func(rc *uow.RequestContext) {
		require.NoError(t, rc.Session.Users().Create(context.Background(), u))
	})
	return u
}

// CreateSuperAdmin stores a super administrator
func (e *Env) CreateSuperAdmin(t testing.TB, email string) *identity.User {
	t.Helper()
	u, err := identity.NewUser(email, "Super "+email, "secret123", true)
	require.NoError(t, err)
	u.IsSuperAdmin = true
	u.IsApproved = true
	e.Seed(t, func(rc *uow.RequestContext) {
		require.NoError(t, rc.Session.Users().Create(context.Background(), u))
	})
	return u
}

// CreateForm stores a form with the given field specs
func (e *Env) CreateForm(t testing.TB, creator *identity.User, title string, specs ...form.FieldSpec) *form.Form {
	t.Helper()
	f, err := form.NewForm(creator.ID, title, "", specs)
	require.NoError(t, err)
	e.Seed(t, func(rc *uow.RequestContext) {
		require.NoError(t, rc.Session.Forms().Create(context.Background(), f))
	})
	return f
}

// ContactFormFields is a small form used across tests
func ContactFormFields() []form.FieldSpec {
	return []form.FieldSpec{
		{Type: form.FieldTypeText, Label: "Full name", Name: "full_name", IsRequired: true},
		{Type: form.FieldTypeEmail, Label: "Email", Name: "email"},
		{Type: form.FieldTypeFiles, Label: "Documents", Name: "documents"},
		{Type: form.FieldTypeSignature, Label: "Signature", Name: "signature"},
	}
}
