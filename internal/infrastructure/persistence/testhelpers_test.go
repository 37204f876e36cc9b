package persistence

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/formhub/backend/internal/domain/form"
	"github.com/formhub/backend/internal/domain/identity"
	"github.com/formhub/backend/internal/domain/notification"
	"github.com/formhub/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens a migrated in-memory sqlite database
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(SQLiteDSN(":memory:")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// newMockGormDB creates a GORM postgres DB over sqlmock
func newMockGormDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func mustAdmin(t *testing.T, db *gorm.DB, email string) *identity.User {
	t.Helper()
	u, err := identity.NewUser(email, "Admin "+email, "secret123", true)
	require.NoError(t, err)
	require.NoError(t, u.Approve())
	require.NoError(t, NewGormUserRepository(db).Create(t.Context(), u))
	return u
}

func mustForm(t *testing.T, db *gorm.DB, creator *identity.User, title string) *form.Form {
	t.Helper()
	f, err := form.NewForm(creator.ID, title, "desc", []form.FieldSpec{
		{Type: form.FieldTypeText, Label: "Full name", Name: "full_name", IsRequired: true},
		{Type: form.FieldTypeFiles, Label: "Documents", Name: "documents"},
		{Type: form.FieldTypeSignature, Label: "Signature", Name: "signature"},
	})
	require.NoError(t, err)
	require.NoError(t, NewGormFormRepository(db).Create(t.Context(), f))
	return f
}

func notificationChannelFor(userID uuid.UUID, chatID string, enabled bool) *notification.Channel {
	c := notification.NewTelegramChannel(userID)
	_ = c.Configure(&chatID, &enabled)
	return c
}
