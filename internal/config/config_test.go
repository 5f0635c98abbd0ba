package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DROPMAIL_JWT_SECRET", strings.Repeat("a", 32))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"drop.mail"}, cfg.Mail.AllowedDomains)
	assert.Equal(t, int64(5*1024*1024), cfg.Mail.MaxAttachmentSize)
	assert.False(t, cfg.SMTP.Enabled)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "", cfg.Database.Type)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiry)
	assert.Equal(t, time.Hour, cfg.Cleanup.Interval)
	assert.Equal(t, 4, cfg.Cleanup.Workers)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("DROPMAIL_JWT_SECRET", strings.Repeat("a", 32))
	t.Setenv("DROPMAIL_SERVER_PORT", "9090")
	t.Setenv("DROPMAIL_MAIL_ALLOWED_DOMAINS", "One.Example, two.example")
	t.Setenv("DROPMAIL_CLEANUP_INTERVAL", "30m")
	t.Setenv("DROPMAIL_SMTP_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	// 域名统一小写并去除空白
	assert.Equal(t, []string{"one.example", "two.example"}, cfg.Mail.AllowedDomains)
	assert.Equal(t, 30*time.Minute, cfg.Cleanup.Interval)
	assert.True(t, cfg.SMTP.Enabled)
}

func TestLoad_RejectsDefaultJWTSecret(t *testing.T) {
	t.Setenv("DROPMAIL_JWT_SECRET", "change-me-in-production")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsShortJWTSecret(t *testing.T) {
	t.Setenv("DROPMAIL_JWT_SECRET", "too-short")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadReceiver_SkipsJWTSecretCheck(t *testing.T) {
	t.Setenv("DROPMAIL_JWT_SECRET", "change-me-in-production")

	cfg, err := LoadReceiver()
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestLoad_EmptyDomainListFails(t *testing.T) {
	t.Setenv("DROPMAIL_JWT_SECRET", strings.Repeat("a", 32))
	t.Setenv("DROPMAIL_MAIL_ALLOWED_DOMAINS", " , ")

	_, err := Load()
	assert.Error(t, err)
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseList("a, b"))
	assert.Empty(t, parseList(""))
	assert.Equal(t, []string{"x"}, parseList(" x "))
}
