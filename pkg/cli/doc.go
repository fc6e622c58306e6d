// Package cli provides the command-line interface for frontd.
//
// Commands:
//   - serve: run the front end in the foreground until interrupted
//   - ws connect|send|listen: a small WebSocket client for poking at a running server
//   - version: show build information
//
// serve reads its configuration from, in increasing priority: built-in
// defaults, a YAML or JSON file (--config or FRONTD_CONFIG), FRONTD_*
// environment variables and command-line flags.
package cli
