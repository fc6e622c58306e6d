package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status label used for requests no controller claimed.
const StatusUnmatched = "unmatched"

// Config configures a Collector.
type Config struct {
	// Namespace prefixes every metric name (default: "frontd").
	Namespace string

	// Registry receives the metrics. Default: a fresh registry.
	Registry *prometheus.Registry

	// Buckets are the request duration histogram buckets.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Runtime adds the Go runtime and process collectors.
	Runtime bool
}

// Option configures a Collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithRegistry sets the registry metrics are registered with.
func WithRegistry(r *prometheus.Registry) Option {
	return func(c *Config) {
		c.Registry = r
	}
}

// WithBuckets sets the request duration buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRuntimeMetrics adds Go runtime and process metrics.
func WithRuntimeMetrics() Option {
	return func(c *Config) {
		c.Runtime = true
	}
}

// Collector holds the core's Prometheus metrics.
type Collector struct {
	registry *prometheus.Registry
	factory  promauto.Factory
	ns       string

	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	inFlight       prometheus.Gauge
	panics         prometheus.Counter
	writeErrors    prometheus.Counter
	wsOpened       prometheus.Counter
	wsClosed       prometheus.Counter
	wsMessages     prometheus.Counter
	wsMessageBytes prometheus.Counter

	watchMu sync.Mutex
	watched map[string]bool
}

// New creates a Collector and registers its metrics.
func New(opts ...Option) *Collector {
	cfg := Config{Namespace: "frontd", Buckets: prometheus.DefBuckets}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	if cfg.Runtime {
		cfg.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	f := promauto.With(cfg.Registry)
	ns := cfg.Namespace
	return &Collector{
		registry: cfg.Registry,
		factory:  f,
		ns:       ns,
		watched:  make(map[string]bool),

		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "requests_total",
			Help:      "Requests dispatched, by method and response status.",
		}, []string{"method", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "request_duration_seconds",
			Help:      "Time from dispatch to response, by method.",
			Buckets:   cfg.Buckets,
		}, []string{"method"}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "requests_in_flight",
			Help:      "Requests currently being processed.",
		}),
		panics: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "controller_panics_total",
			Help:      "Controller panics recovered by the dispatcher.",
		}),
		writeErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "response_write_errors_total",
			Help:      "Responses that could not be written back.",
		}),
		wsOpened: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "websocket_opened_total",
			Help:      "WebSockets accepted.",
		}),
		wsClosed: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "websocket_closed_total",
			Help:      "WebSockets closed by either side.",
		}),
		wsMessages: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "websocket_messages_total",
			Help:      "WebSocket messages delivered to controllers.",
		}),
		wsMessageBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "websocket_message_bytes_total",
			Help:      "Bytes of WebSocket messages delivered to controllers.",
		}),
	}
}

// Registry returns the registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveRequest records one dispatched request. A zero status means no
// controller claimed it.
func (c *Collector) ObserveRequest(method string, status int, d time.Duration) {
	if c == nil {
		return
	}
	label := StatusUnmatched
	if status != 0 {
		label = strconv.Itoa(status)
	}
	c.requests.WithLabelValues(method, label).Inc()
	c.duration.WithLabelValues(method).Observe(d.Seconds())
}

// RequestStarted and RequestFinished bracket a request.
func (c *Collector) RequestStarted() {
	if c != nil {
		c.inFlight.Inc()
	}
}

func (c *Collector) RequestFinished() {
	if c != nil {
		c.inFlight.Dec()
	}
}

func (c *Collector) ControllerPanic() {
	if c != nil {
		c.panics.Inc()
	}
}

func (c *Collector) WriteError() {
	if c != nil {
		c.writeErrors.Inc()
	}
}

func (c *Collector) WebSocketOpened() {
	if c != nil {
		c.wsOpened.Inc()
	}
}

func (c *Collector) WebSocketClosed() {
	if c != nil {
		c.wsClosed.Inc()
	}
}

// WebSocketMessage records one message of n bytes delivered to controllers.
func (c *Collector) WebSocketMessage(n int) {
	if c == nil {
		return
	}
	c.wsMessages.Inc()
	c.wsMessageBytes.Add(float64(n))
}

// WatchGauge registers a gauge read from fn at scrape time. Registering the
// same name twice is a no-op.
func (c *Collector) WatchGauge(name, help string, fn func() float64) {
	if c == nil || !c.claim(name) {
		return
	}
	c.factory.NewGaugeFunc(prometheus.GaugeOpts{Namespace: c.ns, Name: name, Help: help}, fn)
}

// WatchCounter registers a counter read from fn at scrape time. fn must be
// monotonic. Registering the same name twice is a no-op.
func (c *Collector) WatchCounter(name, help string, fn func() float64) {
	if c == nil || !c.claim(name) {
		return
	}
	c.factory.NewCounterFunc(prometheus.CounterOpts{Namespace: c.ns, Name: name, Help: help}, fn)
}

func (c *Collector) claim(name string) bool {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	if c.watched[name] {
		return false
	}
	c.watched[name] = true
	return true
}
