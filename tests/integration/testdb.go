// Package integration runs the persistence layer and the unit of work against
// a real PostgreSQL database started with testcontainers. The schema comes
// from the embedded SQL migrations, the same way cmd/migrate applies it.
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/formhub/backend/internal/application/uow"
	"github.com/formhub/backend/internal/domain/form"
	"github.com/formhub/backend/internal/domain/identity"
	"github.com/formhub/backend/internal/infrastructure/config"
	"github.com/formhub/backend/internal/infrastructure/event"
	"github.com/formhub/backend/internal/infrastructure/migration"
	"github.com/formhub/backend/internal/infrastructure/persistence"
	"github.com/formhub/backend/migrations"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
)

// TestDB is a migrated PostgreSQL database with a session factory and event bus
type TestDB struct {
	Database  *persistence.Database
	Config    config.DatabaseConfig
	Sessions  *persistence.GormSessionFactory
	Bus       *event.EventBus
	Container testcontainers.Container
	t         *testing.T
}

// NewTestDB starts a PostgreSQL container and applies every migration.
// The container is terminated on cleanup.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("formhub_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := config.DatabaseConfig{
		Driver:          "postgres",
		Host:            host,
		Port:            port.Int(),
		User:            "postgres",
		Password:        "postgres",
		DBName:          "formhub_test",
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5,
	}

	runMigrations(t, cfg)

	db, err := persistence.NewDatabase(&cfg)
	require.NoError(t, err, "Failed to connect to database")
	t.Cleanup(func() { _ = db.Close() })

	return &TestDB{
		Database:  db,
		Config:    cfg,
		Sessions:  persistence.NewGormSessionFactory(db.DB),
		Bus:       event.NewEventBus(zaptest.NewLogger(t)),
		Container: container,
		t:         t,
	}
}

// NewMigrator opens a dedicated connection for migration commands.
// Closing the migrator closes that connection.
func (tdb *TestDB) NewMigrator() *migration.Migrator {
	tdb.t.Helper()
	return newMigrator(tdb.t, tdb.Config)
}

func newMigrator(t *testing.T, cfg config.DatabaseConfig) *migration.Migrator {
	t.Helper()
	sqlDB, err := sql.Open("postgres", cfg.DSN())
	require.NoError(t, err)
	m, err := migration.New(sqlDB, migrations.FS, zaptest.NewLogger(t))
	require.NoError(t, err, "Failed to create migrator")
	return m
}

func runMigrations(t *testing.T, cfg config.DatabaseConfig) {
	t.Helper()
	m := newMigrator(t, cfg)
	defer func() { _ = m.Close() }()
	require.NoError(t, m.Up(), "Failed to run migrations")
}

// Begin opens a request context whose session is closed on cleanup
func (tdb *TestDB) Begin() *uow.RequestContext {
	tdb.t.Helper()
	session, err := tdb.Sessions.OpenSession(context.Background())
	require.NoError(tdb.t, err)
	tdb.t.Cleanup(func() { _ = session.Close() })
	return uow.NewRequestContext(session, event.NewDeferredEventBus(tdb.Bus))
}

// Commit commits rc, then flushes its events
func (tdb *TestDB) Commit(rc *uow.RequestContext) {
	tdb.t.Helper()
	require.NoError(tdb.t, rc.Session.Commit())
	require.NoError(tdb.t, rc.Events.Flush(context.Background()))
}

// CountRows counts the rows of table
func (tdb *TestDB) CountRows(table string) int64 {
	tdb.t.Helper()
	var n int64
	require.NoError(tdb.t, tdb.Database.DB.Raw(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n).Error)
	return n
}

// CreateAdmin stores an approved administrator
func (tdb *TestDB) CreateAdmin(email string) *identity.User {
	tdb.t.Helper()
	u, err := identity.NewUser(email, "Admin "+email, "secret123", true)
	require.NoError(tdb.t, err)
	require.NoError(tdb.t, u.Approve())

	rc := tdb.Begin()
	require.NoError(tdb.t, rc.Session.Users().Create(context.Background(), u))
	tdb.Commit(rc)
	return u
}

// CreateForm stores a form with a required text field, an email field and a files field
func (tdb *TestDB) CreateForm(creator *identity.User, title string) *form.Form {
	tdb.t.Helper()
	f, err := form.NewForm(creator.ID, title, "integration", []form.FieldSpec{
		{Type: form.FieldTypeText, Label: "Full name", Name: "full_name", IsRequired: true},
		{Type: form.FieldTypeEmail, Label: "Email", Name: "email"},
		{Type: form.FieldTypeFiles, Label: "Documents", Name: "documents"},
	})
	require.NoError(tdb.t, err)

	rc := tdb.Begin()
	require.NoError(tdb.t, rc.Session.Forms().Create(context.Background(), f))
	tdb.Commit(rc)
	return f
}
