package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, 10*time.Second, cfg.RequestTimeout)
	require.Equal(t, 2, cfg.FetchAttempts)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "companion.yaml")
	body := "base_url: https://api.example.org\nrequest_timeout: 3s\ndraft_ttl: 48h\nlog_level: debug\nfetch_attempts: 4\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("COMPANION_FETCH_ATTEMPTS", "1")
	t.Setenv("COMPANION_DB_PATH", "/tmp/state.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://api.example.org", cfg.BaseURL)
	require.Equal(t, 3*time.Second, cfg.RequestTimeout)
	require.Equal(t, 48*time.Hour, cfg.DraftTTL)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 1, cfg.FetchAttempts, "env overrides the file")
	require.Equal(t, "/tmp/state.db", cfg.DBPath)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default().BaseURL, cfg.BaseURL)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "relative url", env: map[string]string{"COMPANION_BASE_URL": "api/v1"}},
		{name: "zero attempts", env: map[string]string{"COMPANION_FETCH_ATTEMPTS": "0"}},
		{name: "bad level", env: map[string]string{"COMPANION_LOG_LEVEL": "loud"}},
		{name: "bad duration", env: map[string]string{"COMPANION_REQUEST_TIMEOUT": "soon"}},
		{name: "timeout above cap", env: map[string]string{"COMPANION_REQUEST_TIMEOUT": "11s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			require.Error(t, err)
		})
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: [unterminated"), 0o600))
	_, err := Load(path)
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	log, err := NewLogger("warn")
	require.NoError(t, err)
	require.False(t, log.Core().Enabled(-1))
	_, err = NewLogger("nope")
	require.Error(t, err)
}
