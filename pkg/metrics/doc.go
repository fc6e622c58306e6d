// Package metrics exposes dispatch-core counters to Prometheus.
//
// A Collector owns its own prometheus.Registry unless one is supplied, so
// several servers (or tests) in one process never collide on registration.
// All Collector methods are safe to call on a nil *Collector, which lets the
// core record unconditionally whether or not metrics are enabled.
//
//	m := metrics.New(metrics.WithNamespace("frontd"), metrics.WithRuntimeMetrics())
//	srv := engine.New(cfg, engine.WithMetrics(m))
//	http.Handle("/metrics", m.Handler())
package metrics
