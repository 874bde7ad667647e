package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 10.0, cfg.Matching.Tolerance)
	assert.True(t, cfg.Matching.PPM)
	assert.Equal(t, 1000, cfg.Graph.SubtreeWindow)
	assert.Equal(t, 10, cfg.Graph.ProgressInterval)
	assert.Equal(t, 1024, cfg.Graph.CacheSize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Len(t, cfg.GraphOptions(), 2)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tolerance: 0.05\nppm: false\nsubtree_window: 250\n"), 0o644))

	t.Setenv("MSTREE_SUBTREE_WINDOW", "400")
	t.Setenv("MSTREE_LOG_FORMAT", "JSON")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 0.05, cfg.Matching.Tolerance)
	assert.False(t, cfg.Matching.PPM)
	assert.Equal(t, 400, cfg.Graph.SubtreeWindow, "environment overrides file")
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadWorkingDirectoryFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mstree.yaml"), []byte("cache_size: 7\n"), 0o644))
	chdir(t, dir)

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Graph.CacheSize)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero tolerance", "tolerance: 0\n"},
		{"negative window", "subtree_window: -1\n"},
		{"zero progress interval", "progress_interval: 0\n"},
		{"negative cache", "cache_size: -5\n"},
		{"bad level", "log_level: loud\n"},
		{"bad format", "log_format: xml\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "mstree.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := Load(viper.New(), path)
			assert.Error(t, err)
		})
	}

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(viper.New(), filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{Log: LogConfig{Level: "warn", Format: "json"}}
	logger := cfg.Logger(&buf)

	logger.Info().Msg("hidden")
	logger.Warn().Int("scan", 3).Msg("shown")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, float64(3), entry["scan"])
}

// chdir changes the working directory for the duration of the test,
// equivalent to testing.T.Chdir on newer toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
