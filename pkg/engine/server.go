package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/getmockd/frontd/pkg/config"
	"github.com/getmockd/frontd/pkg/controller"
	"github.com/getmockd/frontd/pkg/httpmsg"
	"github.com/getmockd/frontd/pkg/logging"
	"github.com/getmockd/frontd/pkg/metrics"
	"github.com/getmockd/frontd/pkg/session"
	"github.com/getmockd/frontd/pkg/transport"
	"github.com/getmockd/frontd/pkg/websocket"
)

// TracerName is the instrumentation name used for the default tracer.
const TracerName = "github.com/getmockd/frontd/pkg/engine"

// State is the lifecycle state of a Server.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Server is the dispatch core.
type Server struct {
	cfg      *config.Config
	log      *slog.Logger
	factory  transport.Factory
	sessions *session.Store
	sockets  *websocket.Registry
	metrics  *metrics.Collector
	tracer   trace.Tracer

	// lifeMu serializes Start, Shutdown and the poll goroutine's teardown.
	lifeMu sync.Mutex
	state  atomic.Int32
	stop   atomic.Bool
	eng    transport.Engine
	done   chan struct{}

	mu        sync.Mutex
	current   map[transport.Conn]*httpmsg.Request
	requests  int64
	startTime time.Time

	ctrlMu      sync.RWMutex
	controllers []controller.Controller
}

var (
	_ transport.Callbacks = (*Server)(nil)
	_ controller.Host     = (*Server)(nil)
)

// Option is a functional option for configuring a Server.
type Option func(*Server)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithEngineFactory replaces the HTTP engine.
func WithEngineFactory(f transport.Factory) Option {
	return func(s *Server) {
		s.factory = f
	}
}

// WithSessionStore replaces the session store built from the configuration.
func WithSessionStore(store *session.Store) Option {
	return func(s *Server) {
		s.sessions = store
	}
}

// WithMetrics records requests and WebSocket activity in c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) {
		s.metrics = c
	}
}

// WithTracer sets the tracer used for routed requests. The default is the
// global otel tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(s *Server) {
		s.tracer = t
	}
}

// New creates a Server. A nil cfg means config.DefaultConfig().
func New(cfg *config.Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Server{
		cfg:     cfg.Clone(),
		log:     logging.Nop(),
		current: make(map[transport.Conn]*httpmsg.Request),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.factory == nil {
		s.factory = transport.HTTPFactory(transport.WithLogger(logging.Component(s.log, "transport")))
	}
	if s.sessions == nil {
		sessOpts := []session.Option{session.WithLogger(logging.Component(s.log, "session"))}
		if s.cfg.Session.CookieName != "" {
			sessOpts = append(sessOpts, session.WithCookieName(s.cfg.Session.CookieName))
		}
		if s.cfg.Session.MaxAge > 0 {
			sessOpts = append(sessOpts, session.WithMaxAge(s.cfg.Session.MaxAge.Duration()))
		}
		s.sessions = session.NewStore(sessOpts...)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(TracerName)
	}
	s.sockets = websocket.NewRegistry(websocket.WithLogger(logging.Component(s.log, "websocket")))
	s.watch()
	return s
}

func (s *Server) watch() {
	if s.metrics == nil {
		return
	}
	s.metrics.WatchGauge("websockets_open", "WebSockets currently open.", func() float64 {
		return float64(s.sockets.Count())
	})
	s.metrics.WatchGauge("sessions_active", "Sessions currently stored.", func() float64 {
		return float64(s.sessions.Count())
	})
	s.metrics.WatchCounter("session_sweeps_total", "Session garbage collection runs.", func() float64 {
		return float64(s.sessions.Stats().Sweeps)
	})
	s.metrics.WatchCounter("sessions_evicted_total", "Sessions removed for inactivity.", func() float64 {
		return float64(s.sessions.Stats().Evicted)
	})
}

// SetOption records a network engine option. It takes effect on the next Start.
func (s *Server) SetOption(key, value string) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	s.cfg.SetOption(key, value)
}

// Start creates and starts a fresh engine and launches the poll loop.
func (s *Server) Start() error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	switch s.State() {
	case StateRunning, StateStopping:
		return ErrAlreadyRunning
	}

	eng := s.factory()
	for k, v := range s.cfg.EngineOptions() {
		if err := eng.SetOption(k, v); err != nil {
			return fmt.Errorf("engine option %s: %w", k, err)
		}
	}
	if err := eng.Start(s); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	s.mu.Lock()
	s.requests = 0
	s.startTime = time.Now()
	s.mu.Unlock()

	s.stop.Store(false)
	s.eng = eng
	s.done = make(chan struct{})
	s.state.Store(int32(StateRunning))
	go s.poll(eng, s.done)

	s.log.Info("server started",
		"addr", addrString(eng.Addr()),
		"upgradePath", s.cfg.UpgradePath,
		"pollInterval", s.cfg.PollInterval.Duration(),
	)
	return nil
}

// Stop stops the server and waits for the engine to be destroyed.
//
// Stop blocks until the poll goroutine exits, so it must not be called from
// WebSocketData or WebSocketClosed, which run on that goroutine. Hooks use
// RequestStop instead.
func (s *Server) Stop() error {
	return s.Shutdown(context.Background())
}

// Shutdown stops the server, waiting until the poll loop has exited or ctx
// is done. Stopping a server that is not running is a no-op. The same
// restriction on controller hooks as for Stop applies.
func (s *Server) Shutdown(ctx context.Context) error {
	select {
	case <-s.RequestStop():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestStop asks the poll loop to stop and returns without waiting. The
// returned channel is closed once the engine is destroyed; it is already
// closed when the server is not running.
func (s *Server) RequestStop() <-chan struct{} {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	switch s.State() {
	case StateCreated, StateStopped:
		return closedChan
	case StateRunning:
		s.state.Store(int32(StateStopping))
		s.stop.Store(true)
		s.log.Info("server stopping")
	}
	return s.done
}

var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

func (s *Server) poll(eng transport.Engine, done chan struct{}) {
	defer close(done)

	interval := s.cfg.PollInterval.Duration()
	for !s.stop.Load() {
		eng.Poll(interval)
		eng.IterateWebSockets()
		if n := s.sockets.Clean(); n > 0 {
			s.log.Debug("swept closed websockets", "count", n)
		}
	}

	var closed int
	s.sockets.Each(func(ws *websocket.WebSocket) {
		if ws.MarkClosed() {
			s.socketClosed(ws)
			closed++
		}
	})
	if err := eng.Destroy(); err != nil {
		s.log.Warn("failed to destroy engine", "error", err)
	}

	s.lifeMu.Lock()
	s.eng = nil
	s.state.Store(int32(StateStopped))
	s.lifeMu.Unlock()

	s.log.Info("server stopped", "websocketsClosed", closed)
}

// RegisterController binds c to the server, runs its Setup and appends it to
// the routing order.
func (s *Server) RegisterController(c controller.Controller) {
	if b, ok := c.(controller.Bindable); ok {
		b.Bind(s)
	}
	c.Setup()

	s.ctrlMu.Lock()
	s.controllers = append(s.controllers, c)
	n := len(s.controllers)
	s.ctrlMu.Unlock()

	s.log.Debug("controller registered", "type", fmt.Sprintf("%T", c), "position", n)
}

// Controllers returns the registered controllers in routing order.
func (s *Server) Controllers() []controller.Controller {
	s.ctrlMu.RLock()
	defer s.ctrlMu.RUnlock()
	return s.controllers[:len(s.controllers):len(s.controllers)]
}

// WebSockets returns the global WebSocket registry.
func (s *Server) WebSockets() *websocket.Registry { return s.sockets }

// Sessions returns the session store.
func (s *Server) Sessions() *session.Store { return s.sessions }

// Logger returns the operational logger.
func (s *Server) Logger() *slog.Logger { return s.log }

// Metrics returns the collector, or nil.
func (s *Server) Metrics() *metrics.Collector { return s.metrics }

// State returns the lifecycle state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Addr returns the running engine's address, or nil.
func (s *Server) Addr() net.Addr {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.eng == nil {
		return nil
	}
	return s.eng.Addr()
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
