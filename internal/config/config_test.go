package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AGROGUARD_CONFIG", "")
	t.Setenv("AGROGUARD_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.AIProvider)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxImageBytes)
	assert.Equal(t, 3, cfg.CitationLimit)
	assert.Equal(t, LogoutRetain, cfg.LogoutPolicy)
	assert.True(t, cfg.RegistrationEnabled)
	assert.Equal(t, filepath.Join(cfg.DataDir, "agroguard.db"), cfg.DBDSN)
	assert.Equal(t, filepath.Join(cfg.DataDir, "images"), cfg.ImageDir())
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agroguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: `+dir+`
ai_provider: Ollama
ai_timeout: 10s
logout_policy: purge
registration_enabled: false
chat_context_window_size: 8
`), 0o600))

	t.Setenv("AGROGUARD_DATA_DIR", "")
	t.Setenv("AI_TIMEOUT", "")
	t.Setenv("CHAT_CONTEXT_WINDOW_SIZE", "12")
	t.Setenv("GEMINI_API_KEY", "key-from-env")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, "ollama", cfg.AIProvider)
	assert.Equal(t, 10*time.Second, cfg.AITimeout)
	assert.Equal(t, LogoutPurge, cfg.LogoutPolicy)
	assert.False(t, cfg.RegistrationEnabled)
	assert.Equal(t, 12, cfg.ChatContextWindowSize)
	assert.Equal(t, "key-from-env", cfg.GeminiAPIKey)
}

func TestLoadRejectsUnknownLogoutPolicy(t *testing.T) {
	t.Setenv("AGROGUARD_CONFIG", "")
	t.Setenv("LOGOUT_POLICY", "archive")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
