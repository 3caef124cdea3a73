package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 300*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "./data/book", cfg.Store.Path)
	assert.Equal(t, "./data/sound", cfg.Storage.SoundDir)
	assert.Equal(t, 4, cfg.Generation.MaxConcurrentPages)
	assert.Equal(t, 3, cfg.Generation.MaxLinesPerPage)
	assert.Equal(t, 5, cfg.Speech.MaxConcurrent)
	assert.Equal(t, "remote", cfg.Speech.Mode)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := "# comment line\nPORT=9090\nTTS_MODE=local\nCORS_ORIGINS=http://a.example, http://b.example\nMAX_CONCURRENT_PAGES=8\n"
	require.NoError(t, os.WriteFile(envPath, []byte(content), 0644))

	cfg, err := LoadConfigFromFile(envPath)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "local", cfg.Speech.Mode)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 8, cfg.Generation.MaxConcurrentPages)
}

func TestLoadConfig_EnvVarOverridesFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("PORT=9090\n"), 0644))
	t.Setenv("PORT", "7070")

	cfg, err := LoadConfigFromFile(envPath)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
}

func TestLoadConfig_RejectsBadMode(t *testing.T) {
	t.Setenv("TTS_MODE", "carrier-pigeon")

	_, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "absent.env"))
	assert.Error(t, err)
}

func TestLoadEnvFile_QuotedValues(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("GOOGLE_API_KEY=\"secret\"\nNOT_A_PAIR\n"), 0644))

	vars, err := loadEnvFile(envPath)
	require.NoError(t, err)

	assert.Equal(t, "secret", vars["GOOGLE_API_KEY"])
	assert.NotContains(t, vars, "NOT_A_PAIR")
}
