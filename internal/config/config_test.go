package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webcall/native/internal/domain"
)

var allKeys = []string{
	"WEBCALL_ADDR", "WEBCALL_ICE_SERVERS", "WEBCALL_ICE_USERNAME", "WEBCALL_ICE_CREDENTIAL",
	"WEBCALL_ICE_SERVERS_URL", "WEBCALL_ICE_TOKEN", "WEBCALL_ICE_WAIT", "WEBCALL_ICE_EXTRA_WAIT",
	"WEBCALL_UDP_PORT_MIN", "WEBCALL_UDP_PORT_MAX", "WEBCALL_ENCRYPTION", "WEBCALL_LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultAddr, cfg.Addr)
	assert.Empty(t, cfg.ICEServers)
	assert.Equal(t, 4*time.Second, cfg.ICEWait)
	assert.Equal(t, 4*time.Second, cfg.ICEExtraWait)
	assert.True(t, cfg.Encryption)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Zero(t, cfg.UDPPortMin)
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEBCALL_ADDR", ":9000")
	t.Setenv("WEBCALL_ICE_SERVERS", "stun:a.example:3478, turn:b.example:3478")
	t.Setenv("WEBCALL_ICE_USERNAME", "user")
	t.Setenv("WEBCALL_ICE_CREDENTIAL", "pass")
	t.Setenv("WEBCALL_ICE_WAIT", "1500ms")
	t.Setenv("WEBCALL_ICE_EXTRA_WAIT", "2s")
	t.Setenv("WEBCALL_UDP_PORT_MIN", "50000")
	t.Setenv("WEBCALL_UDP_PORT_MAX", "50100")
	t.Setenv("WEBCALL_ENCRYPTION", "false")
	t.Setenv("WEBCALL_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, []domain.ICEServer{{
		URLs:       []string{"stun:a.example:3478", "turn:b.example:3478"},
		Username:   "user",
		Credential: "pass",
	}}, cfg.ICEServers)
	assert.Equal(t, 1500*time.Millisecond, cfg.ICEWait)
	assert.Equal(t, 2*time.Second, cfg.ICEExtraWait)
	assert.Equal(t, uint16(50000), cfg.UDPPortMin)
	assert.Equal(t, uint16(50100), cfg.UDPPortMax)
	assert.False(t, cfg.Encryption)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad wait", "WEBCALL_ICE_WAIT", "soon"},
		{"negative wait", "WEBCALL_ICE_EXTRA_WAIT", "-1s"},
		{"bad port", "WEBCALL_UDP_PORT_MIN", "70000"},
		{"half range", "WEBCALL_UDP_PORT_MAX", "50000"},
		{"bad bool", "WEBCALL_ENCRYPTION", "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_InvertedPortRange(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEBCALL_UDP_PORT_MIN", "50100")
	t.Setenv("WEBCALL_UDP_PORT_MAX", "50000")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.Unsetenv("WEBCALL_ADDR"))
	require.NoError(t, os.Unsetenv("WEBCALL_LOG_LEVEL"))
	t.Setenv("WEBCALL_ICE_WAIT", "3s")

	path := filepath.Join(t.TempDir(), "webcall.env")
	require.NoError(t, os.WriteFile(path, []byte("WEBCALL_ADDR=127.0.0.1:9999\nWEBCALL_LOG_LEVEL=warn\nWEBCALL_ICE_WAIT=1s\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.Addr)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 3*time.Second, cfg.ICEWait, "environment wins over the file")

	require.NoError(t, os.Unsetenv("WEBCALL_ADDR"))
	require.NoError(t, os.Unsetenv("WEBCALL_LOG_LEVEL"))
}

func TestLoad_MissingEnvFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
