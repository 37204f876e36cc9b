package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvKeys = []string{
	"FORMHUB_APP_NAME",
	"FORMHUB_APP_ENV",
	"FORMHUB_HTTP_PORT",
	"FORMHUB_DATABASE_DRIVER",
	"FORMHUB_DATABASE_HOST",
	"FORMHUB_DATABASE_PORT",
	"FORMHUB_DATABASE_USER",
	"FORMHUB_DATABASE_PASSWORD",
	"FORMHUB_DATABASE_DBNAME",
	"FORMHUB_DATABASE_PATH",
	"FORMHUB_DATABASE_MAX_OPEN_CONNS",
	"FORMHUB_DATABASE_MAX_IDLE_CONNS",
	"FORMHUB_JWT_SECRET",
	"FORMHUB_STORAGE_BUCKET",
	"FORMHUB_TELEGRAM_BOT_TOKEN",
	"FORMHUB_UPLOAD_MAX_AVATAR_SIZE",
	"FORMHUB_HTTP_CORS_ALLOW_ORIGINS",
	"FORMHUB_TELEMETRY_SAMPLING_RATIO",
}

// clearConfigEnv unsets every key for the duration of the test.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnvKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearConfigEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "formhub", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8000", cfg.HTTP.Port)
		assert.Equal(t, "0.0.0.0:8000", cfg.HTTP.Addr())
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "formhub", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.Equal(t, DefaultJWTSecret, cfg.JWT.Secret)
		assert.Equal(t, 24*time.Hour, cfg.JWT.AccessTokenExpiration)
		assert.Equal(t, int64(2<<20), cfg.Upload.MaxAvatarSize)
		assert.Equal(t, "https://api.telegram.org", cfg.Telegram.APIBaseURL)
		assert.Empty(t, cfg.Storage.Bucket)
		assert.Empty(t, cfg.HTTP.CORSAllowOrigins)
		assert.Equal(t, "formhub", cfg.Telemetry.ServiceName)
	})

	t.Run("loads values from environment variables with FORMHUB prefix", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("FORMHUB_APP_NAME", "forms-test")
		t.Setenv("FORMHUB_HTTP_PORT", "9000")
		t.Setenv("FORMHUB_DATABASE_DRIVER", "sqlite")
		t.Setenv("FORMHUB_DATABASE_PATH", ":memory:")
		t.Setenv("FORMHUB_DATABASE_MAX_OPEN_CONNS", "50")
		t.Setenv("FORMHUB_DATABASE_MAX_IDLE_CONNS", "10")
		t.Setenv("FORMHUB_STORAGE_BUCKET", "uploads")
		t.Setenv("FORMHUB_TELEGRAM_BOT_TOKEN", "123:abc")
		t.Setenv("FORMHUB_UPLOAD_MAX_AVATAR_SIZE", "1024")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "forms-test", cfg.App.Name)
		assert.Equal(t, "9000", cfg.HTTP.Port)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, ":memory:", cfg.Database.Path)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Database.MaxIdleConns)
		assert.Equal(t, "uploads", cfg.Storage.Bucket)
		assert.Equal(t, "123:abc", cfg.Telegram.BotToken)
		assert.Equal(t, int64(1024), cfg.Upload.MaxAvatarSize)
	})

	t.Run("rejects unknown database driver", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("FORMHUB_DATABASE_DRIVER", "mysql")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.driver")
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("FORMHUB_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("FORMHUB_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("validates MaxIdleConns cannot be negative", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("FORMHUB_DATABASE_MAX_IDLE_CONNS", "-1")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns cannot be negative")
	})

	t.Run("rejects sampling ratio above one", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("FORMHUB_TELEMETRY_SAMPLING_RATIO", "1.5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sampling_ratio")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	const strongSecret = "this-is-a-very-secure-jwt-secret-key-32chars"

	setValidProductionBase := func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("FORMHUB_APP_ENV", "production")
		t.Setenv("FORMHUB_JWT_SECRET", strongSecret)
		t.Setenv("FORMHUB_DATABASE_PASSWORD", "secure-password")
	}

	t.Run("rejects the development jwt secret", func(t *testing.T) {
		setValidProductionBase(t)
		os.Unsetenv("FORMHUB_JWT_SECRET")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt.secret must be set in production")
	})

	t.Run("requires jwt.secret at least 32 characters", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("FORMHUB_JWT_SECRET", "short-secret")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least 32 characters")
	})

	t.Run("requires database.password for postgres", func(t *testing.T) {
		setValidProductionBase(t)
		os.Unsetenv("FORMHUB_DATABASE_PASSWORD")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("sqlite needs no database password", func(t *testing.T) {
		setValidProductionBase(t)
		os.Unsetenv("FORMHUB_DATABASE_PASSWORD")
		t.Setenv("FORMHUB_DATABASE_DRIVER", "sqlite")

		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.App.IsProduction())
	})

	t.Run("rejects wildcard CORS origin", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("FORMHUB_HTTP_CORS_ALLOW_ORIGINS", "*")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cors_allow_origins")
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		setValidProductionBase(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "/testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}

func TestRedisConfig_Addr(t *testing.T) {
	assert.Equal(t, "cache:6380", RedisConfig{Host: "cache", Port: 6380}.Addr())
}
