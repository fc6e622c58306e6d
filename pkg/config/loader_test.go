package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFile_YAML(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "frontd.yaml", `
listeningPort: "127.0.0.1:9000"
documentRoot: public
enableKeepAlive: false
pollInterval: 250ms
options:
  enable_h2c: "yes"
session:
  gcDivisor: 10
  maxAge: 30m
log:
  level: debug
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.ListeningPort)
	assert.Equal(t, "public", cfg.DocumentRoot)
	assert.False(t, cfg.EnableKeepAlive)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval.Duration())
	assert.Equal(t, "yes", cfg.Options["enable_h2c"])
	assert.Equal(t, 10, cfg.Session.GCDivisor)
	assert.Equal(t, 30*time.Minute, cfg.Session.MaxAge.Duration())
	assert.Equal(t, "sessid", cfg.Session.CookieName, "unset fields keep defaults")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/websocket", cfg.UpgradePath)
}

func TestLoadFromFile_JSON(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "frontd.json", `{"listeningPort":"9001","pollInterval":"50ms","metrics":{"enabled":true}}`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "9001", cfg.ListeningPort)
	assert.Equal(t, 50*time.Millisecond, cfg.PollInterval.Duration())
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadFromFile_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing", func(t *testing.T) {
		_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, ErrFileNotFound)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := LoadFromFile(t.TempDir())
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := LoadFromFile(writeFile(t, "empty.json", "  \n"))
		assert.ErrorIs(t, err, ErrEmptyFile)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := LoadFromFile(writeFile(t, "bad.json", "{nope"))
		assert.ErrorIs(t, err, ErrInvalidJSON)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := LoadFromFile(writeFile(t, "bad.yml", "listeningPort: [unclosed"))
		assert.ErrorIs(t, err, ErrInvalidYAML)
	})

	t.Run("fails validation", func(t *testing.T) {
		_, err := LoadFromFile(writeFile(t, "invalid.yaml", "upgradePath: websocket\n"))
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestSaveToFile_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"out.yaml", "out.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)

			cfg := DefaultConfig()
			cfg.ListeningPort = "7000"
			cfg.PollInterval = Duration(300 * time.Millisecond)
			cfg.SetOption("enable_h2c", "yes")

			require.NoError(t, SaveToFile(path, cfg))
			_, err := os.Stat(path + ".tmp")
			assert.True(t, os.IsNotExist(err))

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}

	assert.Error(t, SaveToFile(filepath.Join(t.TempDir(), "x.json"), nil))
}
