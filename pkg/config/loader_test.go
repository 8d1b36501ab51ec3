package config_test

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/GHOUSEPASHAA/chatboxFull/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func TestLoadDefaults(t *testing.T) {
	// No config file in the package directory; defaults apply.
	cfg, err := config.Load(newTestLogger(), "no-such-config")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "default-secret-key-change-me", cfg.Server.Auth.JWTSecret)
	assert.Equal(t, 0, cfg.Server.ConnectionLimit.MaxPerUser)
	assert.Equal(t, "reject", cfg.Server.ConnectionLimit.Mode)
	assert.Equal(t, 60*time.Second, cfg.Transport.ReadTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CHATBOX_SERVER_ADDRESS", ":9999")
	t.Setenv("CHATBOX_SERVER_AUTH_JWTSECRET", "env-secret")
	t.Setenv("CHATBOX_TRANSPORT_READTIMEOUT", "15s")

	cfg, err := config.Load(newTestLogger(), "no-such-config")
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Address)
	assert.Equal(t, "env-secret", cfg.Server.Auth.JWTSecret)
	assert.Equal(t, 15*time.Second, cfg.Transport.ReadTimeout)
}
