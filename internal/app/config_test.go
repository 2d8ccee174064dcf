package app

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir mirrors testing.T.Chdir (Go 1.24) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PG_DSN", "postgres://lumen@localhost/lumen")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 10*time.Minute, cfg.ReportCacheTTL)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.False(t, cfg.AuditStrict)
	assert.Equal(t, "@every 5m0s", cfg.SweepSpec())
}

func TestLoadConfigOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("AUDIT_STRICT", "true")
	t.Setenv("SWEEP_INTERVAL", "30s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://tienda.lumen.pe,https://admin.lumen.pe")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.AuditStrict)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, []string{"https://tienda.lumen.pe", "https://admin.lumen.pe"}, cfg.CORSAllowedOrigins)
}

func TestLoadConfigRejectsHalfBootstrap(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("BOOTSTRAP_ADMIN_EMAIL", "root@lumen.pe")
	t.Setenv("BOOTSTRAP_ADMIN_PASSWORD", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOOTSTRAP_ADMIN")
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&Config{LogFormat: "json", AppEnv: "production"}, &buf).Info("hello")
	assert.True(t, strings.HasPrefix(buf.String(), "{"), buf.String())

	buf.Reset()
	newLogger(&Config{LogFormat: "text"}, &buf).Debug("verbose")
	assert.Contains(t, buf.String(), "msg=verbose")
}
