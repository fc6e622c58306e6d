// Package demo holds the controllers `frontd serve` registers by default:
// a JSON greeting backed by sessions, a WebSocket chat room and a status
// endpoint exposing server stats and Prometheus metrics.
package demo
