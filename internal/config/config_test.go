package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "STORAGE_DRIVER", "LOG_FORMAT", "JWT_TTL", "MAIL_PROVIDER", "AUDIT_SINKS", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}
	cfg := LoadConfig()

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 5, cfg.Security.MaxFailedAttempts)
	assert.Equal(t, 10*time.Minute, cfg.Security.LockDuration)
	assert.Equal(t, 90*24*time.Hour, cfg.Security.PasswordMaxAge)
	assert.Equal(t, 5, cfg.Security.PasswordHistory)
	assert.Equal(t, 10*time.Minute, cfg.Security.OTPTTL)
	assert.Equal(t, 10, cfg.RateLimit.Requests)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "Production")
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("POSTGRES_DSN", "postgres://skillswap@localhost/skillswap")
	t.Setenv("AUDIT_SINKS", "log,kafka")
	t.Setenv("SECURITY_LOCK_DURATION", "20m")

	cfg := LoadConfig()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, StoragePostgres, cfg.Storage.Driver)
	assert.Equal(t, 20*time.Minute, cfg.Security.LockDuration)
	assert.True(t, cfg.HasAuditSink("kafka"))
	assert.False(t, cfg.HasAuditSink("clickhouse"))
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		t.Setenv("APP_ENV", "development")
		return LoadConfig()
	}

	t.Run("production requires secret and real providers", func(t *testing.T) {
		cfg := base()
		cfg.Environment = EnvProduction
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JWT_SECRET is required")
		assert.Contains(t, err.Error(), "memory storage is not allowed")
		assert.Contains(t, err.Error(), "log mail provider is not allowed")
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := base()
		cfg.Storage.Driver = "mongo"
		assert.ErrorContains(t, cfg.Validate(), `unknown STORAGE_DRIVER "mongo"`)
	})

	t.Run("resend needs api key", func(t *testing.T) {
		cfg := base()
		cfg.Mail.Provider = MailResend
		assert.ErrorContains(t, cfg.Validate(), "RESEND_API_KEY")
	})

	t.Run("unknown audit sink", func(t *testing.T) {
		cfg := base()
		cfg.Audit.Sinks = []string{"log", "splunk"}
		assert.ErrorContains(t, cfg.Validate(), `unknown audit sink "splunk"`)
	})

	t.Run("kms needs key id", func(t *testing.T) {
		cfg := base()
		cfg.KMS.Enabled = true
		assert.ErrorContains(t, cfg.Validate(), "KMS_KEY_ID")
	})
}

func TestGetServerAddress(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Host: "0.0.0.0", Port: 8080}}
	assert.Equal(t, "0.0.0.0:8080", cfg.GetServerAddress())
}
