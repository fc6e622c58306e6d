// Package config holds frontd's typed configuration.
//
// Values are layered: DefaultConfig, then a JSON or YAML file (LoadFromFile),
// then FRONTD_* environment variables (ApplyEnv), then command-line flags.
// EngineOptions flattens the result into the string option map the network
// engine consumes.
package config
