package config

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/getmockd/frontd/pkg/transport"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "8080", cfg.ListeningPort)
	assert.Equal(t, "www", cfg.DocumentRoot)
	assert.True(t, cfg.EnableKeepAlive)
	assert.Equal(t, "/websocket", cfg.UpgradePath)
	assert.Equal(t, time.Second, cfg.PollInterval.Duration())
	assert.Equal(t, 100, cfg.Session.GCDivisor)
	assert.Equal(t, time.Hour, cfg.Session.MaxAge.Duration())
	assert.Equal(t, "sessid", cfg.Session.CookieName)
}

func TestEngineOptions(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	opts := cfg.EngineOptions()
	assert.Equal(t, map[string]string{
		transport.OptionListeningPort:   "8080",
		transport.OptionDocumentRoot:    "www",
		transport.OptionEnableKeepAlive: "yes",
	}, opts)

	cfg.EnableKeepAlive = false
	cfg.SetOption("num_threads", "4")
	cfg.SetOption(transport.OptionListeningPort, "9000")

	opts = cfg.EngineOptions()
	assert.Equal(t, "no", opts[transport.OptionEnableKeepAlive])
	assert.Equal(t, "4", opts["num_threads"], "unknown keys pass through")
	assert.Equal(t, "9000", opts[transport.OptionListeningPort], "explicit options win")
}

func TestClone(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.SetOption("a", "1")
	c := cfg.Clone()
	c.SetOption("a", "2")
	c.ListeningPort = "1"

	assert.Equal(t, "1", cfg.Options["a"])
	assert.Equal(t, "8080", cfg.ListeningPort)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty port", func(c *Config) { c.ListeningPort = " " }, "listeningPort"},
		{"relative upgrade path", func(c *Config) { c.UpgradePath = "ws" }, "upgradePath"},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }, "pollInterval"},
		{"negative divisor", func(c *Config) { c.Session.GCDivisor = -1 }, "gcDivisor"},
		{"negative max age", func(c *Config) { c.Session.MaxAge = Duration(-time.Second) }, "maxAge"},
		{"bad metrics path", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Path = "metrics" }, "metrics.path"},
		{"empty option key", func(c *Config) { c.SetOption("", "x") }, "empty key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("reports all problems", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ListeningPort = ""
		cfg.PollInterval = 0
		var verr *ValidationError
		require.ErrorAs(t, cfg.Validate(), &verr)
		assert.Len(t, verr.Problems, 2)
	})
}

func TestDuration(t *testing.T) {
	t.Parallel()

	t.Run("json string and millis", func(t *testing.T) {
		var v struct {
			A Duration `json:"a"`
			B Duration `json:"b"`
			C Duration `json:"c"`
		}
		require.NoError(t, json.Unmarshal([]byte(`{"a":"250ms","b":1500,"c":""}`), &v))
		assert.Equal(t, 250*time.Millisecond, v.A.Duration())
		assert.Equal(t, 1500*time.Millisecond, v.B.Duration())
		assert.Zero(t, v.C)

		out, err := json.Marshal(v.A)
		require.NoError(t, err)
		assert.Equal(t, `"250ms"`, string(out))
	})

	t.Run("json invalid", func(t *testing.T) {
		var d Duration
		assert.Error(t, json.Unmarshal([]byte(`"soon"`), &d))
		assert.Error(t, json.Unmarshal([]byte(`true`), &d))
	})

	t.Run("yaml", func(t *testing.T) {
		var v struct {
			A Duration `yaml:"a"`
			B Duration `yaml:"b"`
		}
		require.NoError(t, yaml.Unmarshal([]byte("a: 2s\nb: 100\n"), &v))
		assert.Equal(t, 2*time.Second, v.A.Duration())
		assert.Equal(t, 100*time.Millisecond, v.B.Duration())

		out, err := yaml.Marshal(v)
		require.NoError(t, err)
		assert.Contains(t, string(out), "a: 2s")

		assert.Error(t, yaml.Unmarshal([]byte("a: [1, 2]\n"), &v))
		assert.Error(t, yaml.Unmarshal([]byte("a: never\n"), &v))
	})
}
