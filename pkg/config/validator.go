package config

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError lists every problem found in a Config.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// ErrInvalidConfig is matched by every *ValidationError.
var ErrInvalidConfig = errors.New("invalid configuration")

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Validate checks c and reports all problems at once.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.ListeningPort) == "" {
		add("listeningPort is required")
	}
	if !strings.HasPrefix(c.UpgradePath, "/") {
		add("upgradePath must start with '/', got %q", c.UpgradePath)
	}
	if c.PollInterval <= 0 {
		add("pollInterval must be positive, got %s", c.PollInterval)
	}
	if c.Session.GCDivisor < 0 {
		add("session.gcDivisor must not be negative, got %d", c.Session.GCDivisor)
	}
	if c.Session.MaxAge < 0 {
		add("session.maxAge must not be negative, got %s", c.Session.MaxAge)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		add("metrics.path must start with '/', got %q", c.Metrics.Path)
	}
	for k := range c.Options {
		if strings.TrimSpace(k) == "" {
			add("options contains an empty key")
			break
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
