package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/getmockd/frontd/pkg/transport"
)

// Defaults applied by DefaultConfig.
const (
	DefaultListeningPort = "8080"
	DefaultDocumentRoot  = "www"
	DefaultUpgradePath   = "/websocket"
	DefaultPollInterval  = time.Second
	DefaultSessionMaxAge = time.Hour
	DefaultGCDivisor     = 100
	DefaultMetricsPath   = "/metrics"
)

// Config is the complete frontd configuration.
type Config struct {
	// ListeningPort is a port ("8080") or host:port ("127.0.0.1:8080").
	ListeningPort string `json:"listeningPort" yaml:"listeningPort"`

	// DocumentRoot is served for requests no controller claims.
	DocumentRoot string `json:"documentRoot" yaml:"documentRoot"`

	EnableKeepAlive bool `json:"enableKeepAlive" yaml:"enableKeepAlive"`

	// UpgradePath is always claimed so WebSocket handshakes reach the server.
	UpgradePath string `json:"upgradePath" yaml:"upgradePath"`

	// PollInterval bounds one iteration of the poll loop.
	PollInterval Duration `json:"pollInterval" yaml:"pollInterval"`

	// Options are passed to the network engine verbatim and override the
	// typed fields above.
	Options map[string]string `json:"options,omitempty" yaml:"options,omitempty"`

	Session SessionConfig `json:"session" yaml:"session"`
	Log     LogConfig     `json:"log" yaml:"log"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// SessionConfig configures the session store and its garbage collection.
type SessionConfig struct {
	CookieName string   `json:"cookieName" yaml:"cookieName"`
	MaxAge     Duration `json:"maxAge" yaml:"maxAge"`
	GCDivisor  int      `json:"gcDivisor" yaml:"gcDivisor"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
	File   string `json:"file,omitempty" yaml:"file,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
	Runtime bool   `json:"runtime" yaml:"runtime"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		ListeningPort:   DefaultListeningPort,
		DocumentRoot:    DefaultDocumentRoot,
		EnableKeepAlive: true,
		UpgradePath:     DefaultUpgradePath,
		PollInterval:    Duration(DefaultPollInterval),
		Options:         map[string]string{},
		Session: SessionConfig{
			CookieName: "sessid",
			MaxAge:     Duration(DefaultSessionMaxAge),
			GCDivisor:  DefaultGCDivisor,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Path: DefaultMetricsPath,
		},
	}
}

// SetOption records an engine option.
func (c *Config) SetOption(key, value string) {
	if c.Options == nil {
		c.Options = make(map[string]string)
	}
	c.Options[key] = value
}

// EngineOptions returns the option map handed to the network engine.
func (c *Config) EngineOptions() map[string]string {
	opts := map[string]string{
		transport.OptionListeningPort:   c.ListeningPort,
		transport.OptionDocumentRoot:    c.DocumentRoot,
		transport.OptionEnableKeepAlive: transport.FormatBool(c.EnableKeepAlive),
	}
	for k, v := range c.Options {
		opts[k] = v
	}
	return opts
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.Options = make(map[string]string, len(c.Options))
	for k, v := range c.Options {
		out.Options[k] = v
	}
	return &out
}

// Duration is a time.Duration that reads "250ms"-style strings, or integer
// milliseconds, from JSON and YAML.
type Duration time.Duration

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON marshals the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a duration string or integer milliseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var ms int64
		if err := json.Unmarshal(data, &ms); err != nil {
			return fmt.Errorf("duration must be a string or milliseconds: %w", err)
		}
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	return d.parse(s)
}

// MarshalYAML marshals the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalYAML accepts a duration string or integer milliseconds.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	if ms, err := strconv.ParseInt(node.Value, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	if err := d.parse(node.Value); err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	return nil
}

func (d *Duration) parse(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}
