package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diogo/ghostbar/internal/models"
)

// isolate points the config dir at a temp dir and clears the env overrides
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(EnvHome, dir)
	for _, key := range []string{EnvAPIKey, EnvModel, EnvBaseURL, EnvLogLevel} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	return dir
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, models.DefaultModel, cfg.Model)
	assert.Equal(t, models.DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, 1000, cfg.MaxTokens)
	assert.InDelta(t, 0.7, cfg.Temperature, 1e-9)
	assert.Equal(t, 30, cfg.TimeoutSeconds)
	assert.True(t, cfg.Stream)
	assert.Empty(t, cfg.APIKey)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveAndLoadConfig(t *testing.T) {
	dir := isolate(t)

	cfg := DefaultConfig()
	cfg.Model = "gpt-4o-mini"
	cfg.SaveHistory = true
	require.NoError(t, SaveConfig(cfg))

	info, err := os.Stat(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", loaded.Model)
	assert.True(t, loaded.SaveHistory)
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"model":"gpt-4.1"}`), 0o600))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1", cfg.Model)
	assert.Equal(t, models.DefaultMaxTokens, cfg.MaxTokens)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{`), 0o600))

	cfg, err := LoadConfig()
	assert.Error(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestApplyEnv(t *testing.T) {
	isolate(t)
	t.Setenv(EnvAPIKey, " sk-env ")
	t.Setenv(EnvModel, "gpt-4o-mini")
	t.Setenv(EnvBaseURL, "http://localhost:11434/v1")
	t.Setenv(EnvLogLevel, "debug")

	cfg := ApplyEnv(DefaultConfig())
	assert.Equal(t, "sk-env", cfg.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, "http://localhost:11434/v1", cfg.BaseURL)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_DotEnvFromConfigDir(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OPENAI_API_KEY=sk-dotenv\nOPENAI_MODEL=gpt-4.1-mini\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv(EnvAPIKey)
		os.Unsetenv(EnvModel)
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-dotenv", cfg.APIKey)
	assert.Equal(t, "gpt-4.1-mini", cfg.Model)
}

func TestLoad_EnvironmentBeatsDotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OPENAI_MODEL=from-file\n"), 0o600))
	t.Setenv(EnvModel, "from-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Model)
}

func TestSetAndGet(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		want    string
		wantErr bool
	}{
		{"model", "gpt-4o-mini", "gpt-4o-mini", false},
		{"MAX_TOKENS", "500", "500", false},
		{"max_tokens", "-1", "", true},
		{"temperature", "0.2", "0.2", false},
		{"temperature", "3", "", true},
		{"stream", "false", "false", false},
		{"stream", "maybe", "", true},
		{"save_history", "true", "true", false},
		{"timeout_seconds", "60", "60", false},
		{"nope", "x", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := DefaultConfig()
			err := cfg.Set(tt.key, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			got, err := cfg.Get(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetMasksAPIKey(t *testing.T) {
	cfg := DefaultConfig()
	got, err := cfg.Get("api_key")
	require.NoError(t, err)
	assert.Equal(t, "(not set)", got)

	require.NoError(t, cfg.Set("api_key", "sk-proj-abcdefghijklmnop"))
	got, err = cfg.Get("api_key")
	require.NoError(t, err)
	assert.Equal(t, "sk-********mnop", got)
	assert.NotContains(t, got, "abcdef")
}

func TestKeysSorted(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "api_key")
	assert.IsIncreasing(t, keys)
}

func TestGetLogPath(t *testing.T) {
	dir := isolate(t)

	path, err := GetLogPath(DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ghostbar.log"), path)

	cfg := DefaultConfig()
	cfg.LogFile = "/tmp/custom.log"
	path, err = GetLogPath(cfg)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.log", path)
}
