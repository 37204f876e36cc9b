package persistence

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/formhub/backend/internal/infrastructure/config"
	"github.com/formhub/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"empty path is in memory", "", "file::memory:?_foreign_keys=on"},
		{"explicit memory", ":memory:", "file::memory:?_foreign_keys=on"},
		{"file path", "formhub.db", "formhub.db?_foreign_keys=on"},
		{"path with query", "file:formhub.db?cache=shared", "file:formhub.db?cache=shared&_foreign_keys=on"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SQLiteDSN(tt.path))
		})
	}
}

func TestNewDatabase_UnsupportedDriver(t *testing.T) {
	_, err := NewDatabase(&config.DatabaseConfig{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported database driver "oracle"`)
}

func TestNewDatabase_SQLite(t *testing.T) {
	db, err := NewDatabase(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	assert.Equal(t, "sqlite", db.Driver())
	require.NoError(t, db.AutoMigrate())
	require.NoError(t, db.Ping())

	t.Run("creates every table", func(t *testing.T) {
		for _, m := range models.All() {
			assert.True(t, db.DB.Migrator().HasTable(m), "%T", m)
		}
	})

	t.Run("enforces foreign keys", func(t *testing.T) {
		var enabled int
		require.NoError(t, db.DB.Raw("PRAGMA foreign_keys").Scan(&enabled).Error)
		assert.Equal(t, 1, enabled)
	})

	t.Run("pool is pinned to one connection", func(t *testing.T) {
		stats, err := db.Stats()
		require.NoError(t, err)
		assert.Equal(t, 1, stats.MaxOpenConnections)
		assert.LessOrEqual(t, stats.InUse+stats.Idle, 1)
	})
}

// newPingMonitoredDB opens gorm over a sqlmock that records pings. The
// ping gorm issues while opening is consumed here.
func newPingMonitoredDB(t *testing.T) (*Database, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	mock.ExpectPing()
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return &Database{DB: gormDB, driver: "postgres"}, mock
}

func TestDatabase_Ping(t *testing.T) {
	db, mock := newPingMonitoredDB(t)

	mock.ExpectPing()
	assert.NoError(t, db.Ping())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Close(t *testing.T) {
	gormDB, mock, _ := newMockGormDB(t)
	db := &Database{DB: gormDB, driver: "postgres"}

	mock.ExpectClose()
	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_PingFailure(t *testing.T) {
	db, mock := newPingMonitoredDB(t)

	mock.ExpectPing().WillReturnError(assert.AnError)
	assert.ErrorIs(t, db.Ping(), assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}
