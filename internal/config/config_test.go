package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"CONFIG_FILE", "PORT", "CORS_ALLOWED_ORIGINS", "DATABASE_URL", "DB_MAX_OPEN_CONNS",
	"DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME_SEC", "DB_CONN_MAX_IDLE_SEC", "MIGRATE_ON_START",
	"REDIS_URL", "FORM_SCHEMA_SOURCE", "FORM_SCHEMA_FILE", "FORM_SCHEMA_WATCH", "FORM_CACHE_TTL",
	"AUTOSAVE_DELAY", "EDITOR_LOCK_TTL", "SESSION_IDLE_TIMEOUT", "REAPER_INTERVAL",
	"EDIT_RATE_LIMIT", "EDIT_RATE_BURST", "LOG_LEVEL", "LOG_FORMAT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "finplan.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 10*time.Second, time.Duration(cfg.AutosaveDelay))
	assert.Equal(t, FormSourceFile, cfg.FormSchemaSource)
}

func TestLoad_Env(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://crm.example.com, ,https://admin.example.com")
	t.Setenv("DATABASE_URL", "postgres://db/finplan")
	t.Setenv("DB_MAX_OPEN_CONNS", "50")
	t.Setenv("MIGRATE_ON_START", "no")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")
	t.Setenv("FORM_SCHEMA_SOURCE", "postgres")
	t.Setenv("FORM_CACHE_TTL", "1m")
	t.Setenv("AUTOSAVE_DELAY", "3s")
	t.Setenv("EDIT_RATE_LIMIT", "2.5")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"https://crm.example.com", "https://admin.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, "postgres://db/finplan", cfg.DatabaseURL)
	assert.Equal(t, 50, cfg.DBMaxOpenConns)
	assert.False(t, cfg.MigrateOnStart)
	assert.Equal(t, "redis://cache:6379/0", cfg.RedisURL)
	assert.Equal(t, FormSourcePostgres, cfg.FormSchemaSource)
	assert.Equal(t, time.Minute, time.Duration(cfg.FormCacheTTL))
	assert.Equal(t, 3*time.Second, time.Duration(cfg.AutosaveDelay))
	assert.Equal(t, 2.5, cfg.EditRateLimit)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_BadEnvValuesKeepDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "eighty")
	t.Setenv("AUTOSAVE_DELAY", "soon")
	t.Setenv("EDIT_RATE_LIMIT", "fast")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 10*time.Second, time.Duration(cfg.AutosaveDelay))
	assert.Equal(t, 20.0, cfg.EditRateLimit)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", writeFile(t, `
port = 7000
allowed_origins = ["https://crm.example.com"]
form_schema_file = "/etc/finplan/intake.yaml"
form_schema_watch = false
autosave_delay = "5s"
editor_lock_ttl = "5m"
edit_rate_burst = 10
`))
	t.Setenv("PORT", "7100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7100, cfg.Port, "environment overrides the file")
	assert.Equal(t, []string{"https://crm.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, "/etc/finplan/intake.yaml", cfg.FormSchemaFile)
	assert.False(t, cfg.FormSchemaWatch)
	assert.Equal(t, 5*time.Second, time.Duration(cfg.AutosaveDelay))
	assert.Equal(t, 5*time.Minute, time.Duration(cfg.EditorLockTTL))
	assert.Equal(t, 10, cfg.EditRateBurst)
	assert.Equal(t, 30*time.Minute, time.Duration(cfg.SessionIdleTimeout))
}

func TestLoad_FileErrors(t *testing.T) {
	clearEnv(t)

	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	_, err := Load()
	assert.ErrorIs(t, err, os.ErrNotExist)

	t.Setenv("CONFIG_FILE", writeFile(t, `port = "eighty"`))
	_, err = Load()
	assert.ErrorContains(t, err, "parse config file")

	t.Setenv("CONFIG_FILE", writeFile(t, `autosave_delay = "soon"`))
	_, err = Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{"port", func(c *Config) { c.Port = 0 }, "PORT 0 out of range"},
		{"database", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL is required"},
		{"form source", func(c *Config) { c.FormSchemaSource = "s3" }, "FORM_SCHEMA_SOURCE must be"},
		{"form file", func(c *Config) { c.FormSchemaFile = "" }, "FORM_SCHEMA_FILE is required"},
		{"autosave", func(c *Config) { c.AutosaveDelay = 0 }, "AUTOSAVE_DELAY must be positive"},
		{"reaper", func(c *Config) { c.ReaperInterval = c.EditorLockTTL }, "REAPER_INTERVAL must be shorter"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "LOG_LEVEL"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "LOG_FORMAT must be text or json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}

	t.Run("postgres source needs no file", func(t *testing.T) {
		cfg := Default()
		cfg.FormSchemaSource = FormSourcePostgres
		cfg.FormSchemaFile = ""
		assert.NoError(t, cfg.Validate())
	})
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"

	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "subject_id", "contact-1")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"subject_id":"contact-1"`)

	buf.Reset()
	cfg.LogFormat = "text"
	cfg.NewLogger(&buf).Warn("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}

func TestDuration_Text(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))
	assert.Error(t, d.UnmarshalText([]byte("later")))
}
