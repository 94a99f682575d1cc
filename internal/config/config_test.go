package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"PELUSA_CONFIG", "PELUSA_BASE_URL", "PELUSA_SOCKET_URL", "PELUSA_BRIDGE_ADDR",
		"PELUSA_REQUEST_TIMEOUT", "PELUSA_GROUP_MARKERS", "PELUSA_TOKEN", "PELUSA_USER_ID",
		"ENV", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5000", cfg.BaseURL)
	assert.Equal(t, "ws://localhost:5000/socket", cfg.SocketURL)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []string{"Nhóm"}, cfg.GroupNameMarkers)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pelusa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_url: https://chat.example.com/
bridge_addr: 127.0.0.1:4000
log_level: debug
group_name_markers: ["Group"]
`), 0o600))

	clearEnv(t)
	t.Setenv("PELUSA_BRIDGE_ADDR", "127.0.0.1:5001")
	t.Setenv("PELUSA_REQUEST_TIMEOUT", "3s")
	t.Setenv("PELUSA_GROUP_MARKERS", "Nhóm, Team ,")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://chat.example.com/", cfg.BaseURL)
	assert.Equal(t, "wss://chat.example.com/socket", cfg.SocketURL)
	assert.Equal(t, "127.0.0.1:5001", cfg.BridgeAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []string{"Nhóm", "Team"}, cfg.GroupNameMarkers)
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PELUSA_BASE_URL", "ftp://nope")
	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("PELUSA_BASE_URL", "http://localhost:5000")
	t.Setenv("PELUSA_REQUEST_TIMEOUT", "soon")
	_, err = Load("")
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
