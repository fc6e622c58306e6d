package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/getmockd/frontd/pkg/transport"
)

// Environment variable names
const (
	EnvConfig          = "FRONTD_CONFIG"
	EnvListeningPort   = "FRONTD_LISTENING_PORT"
	EnvDocumentRoot    = "FRONTD_DOCUMENT_ROOT"
	EnvEnableKeepAlive = "FRONTD_ENABLE_KEEP_ALIVE"
	EnvUpgradePath     = "FRONTD_UPGRADE_PATH"
	EnvPollInterval    = "FRONTD_POLL_INTERVAL"
	EnvGCDivisor       = "FRONTD_GC_DIVISOR"
	EnvSessionMaxAge   = "FRONTD_SESSION_MAX_AGE"
	EnvLogLevel        = "FRONTD_LOG_LEVEL"
	EnvLogFormat       = "FRONTD_LOG_FORMAT"
	EnvMetrics         = "FRONTD_METRICS"
)

// ConfigPathFromEnv returns FRONTD_CONFIG, or "".
func ConfigPathFromEnv() string {
	return os.Getenv(EnvConfig)
}

// ApplyEnv overrides cfg with any FRONTD_* variables that are set. It
// returns the names of the variables applied. Malformed values are reported
// and leave the field unchanged.
func ApplyEnv(cfg *Config) ([]string, error) {
	return applyEnv(cfg, os.LookupEnv)
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) ([]string, error) {
	var applied []string
	var firstErr error
	fail := func(name, v string, err error) {
		if firstErr == nil {
			firstErr = fmt.Errorf("%s=%q: %w", name, v, err)
		}
	}
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
			applied = append(applied, name)
		}
	}

	str(EnvListeningPort, &cfg.ListeningPort)
	str(EnvDocumentRoot, &cfg.DocumentRoot)
	str(EnvUpgradePath, &cfg.UpgradePath)
	str(EnvLogLevel, &cfg.Log.Level)
	str(EnvLogFormat, &cfg.Log.Format)

	if v, ok := lookup(EnvEnableKeepAlive); ok && v != "" {
		if b, err := transport.ParseBool(v); err != nil {
			fail(EnvEnableKeepAlive, v, err)
		} else {
			cfg.EnableKeepAlive = b
			applied = append(applied, EnvEnableKeepAlive)
		}
	}
	if v, ok := lookup(EnvMetrics); ok && v != "" {
		if b, err := transport.ParseBool(v); err != nil {
			fail(EnvMetrics, v, err)
		} else {
			cfg.Metrics.Enabled = b
			applied = append(applied, EnvMetrics)
		}
	}
	if v, ok := lookup(EnvGCDivisor); ok && v != "" {
		if n, err := strconv.Atoi(v); err != nil {
			fail(EnvGCDivisor, v, err)
		} else {
			cfg.Session.GCDivisor = n
			applied = append(applied, EnvGCDivisor)
		}
	}
	for name, dst := range map[string]*Duration{
		EnvPollInterval:  &cfg.PollInterval,
		EnvSessionMaxAge: &cfg.Session.MaxAge,
	} {
		if v, ok := lookup(name); ok && v != "" {
			var d Duration
			if err := d.parse(v); err != nil {
				fail(name, v, err)
				continue
			}
			*dst = d
			applied = append(applied, name)
		}
	}

	return applied, firstErr
}
