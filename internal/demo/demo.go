package demo

import (
	"github.com/getmockd/frontd/pkg/config"
	"github.com/getmockd/frontd/pkg/engine"
)

// Register adds the demo controllers to srv in routing order: status, hello,
// chat.
func Register(srv *engine.Server, cfg *config.Config) {
	divisor := cfg.Session.GCDivisor

	var (
		metricsPath string
		handler     = srv.Metrics().Handler()
	)
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	srv.RegisterController(NewStatus(func() any { return srv.Stats() }, metricsPath, handler, divisor))
	srv.RegisterController(NewHello(divisor))
	srv.RegisterController(NewChat(divisor))
}
