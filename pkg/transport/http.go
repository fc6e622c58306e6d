package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/net/netutil"

	"github.com/getmockd/frontd/pkg/logging"
)

const (
	shutdownTimeout = 5 * time.Second
	frameTimeout    = 10 * time.Second
	maxCloseReason  = 123
)

// HTTPEngine is an Engine built on net/http. HTTP requests are served on
// net/http's own goroutines; WebSocket frames are buffered per connection
// and handed over from IterateWebSockets on the caller's goroutine.
//
// Outbound frames go through a per-socket queue drained by a writer
// goroutine, so WriteFrame never waits on the network. A socket whose queue
// overflows is disconnected.
type HTTPEngine struct {
	log *slog.Logger

	mu        sync.Mutex
	options   map[string]string
	settings  httpSettings
	cb        Callbacks
	srv       *http.Server
	ln        net.Listener
	files     http.Handler
	sockets   map[*wsConn]struct{}
	started   bool
	destroyed bool

	wake chan struct{}
}

// HTTPOption configures an HTTPEngine.
type HTTPOption func(*HTTPEngine)

// WithLogger sets the engine logger.
func WithLogger(log *slog.Logger) HTTPOption {
	return func(e *HTTPEngine) {
		if log != nil {
			e.log = log
		}
	}
}

// NewHTTPEngine creates an unstarted HTTP engine.
func NewHTTPEngine(opts ...HTTPOption) *HTTPEngine {
	e := &HTTPEngine{
		log:     logging.Nop(),
		options: make(map[string]string),
		sockets: make(map[*wsConn]struct{}),
		wake:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HTTPFactory returns a Factory producing HTTP engines.
func HTTPFactory(opts ...HTTPOption) Factory {
	return func() Engine {
		return NewHTTPEngine(opts...)
	}
}

// SetOption records an option. Options are read once, by Start.
func (e *HTTPEngine) SetOption(key, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		e.log.Debug("option set after start is ignored", "key", key)
	}
	e.options[key] = value
	return nil
}

// Start binds the listener and begins serving.
func (e *HTTPEngine) Start(cb Callbacks) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return ErrAlreadyStarted
	}

	settings, err := parseSettings(e.options)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", settings.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", settings.addr, err)
	}
	if settings.maxConnections > 0 {
		ln = netutil.LimitListener(ln, settings.maxConnections)
	}

	var handler http.Handler = http.HandlerFunc(e.serveHTTP)
	if settings.h2c {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       settings.readTimeout,
		WriteTimeout:      settings.writeTimeout,
		MaxHeaderBytes:    1 << 20,
		ErrorLog:          slog.NewLogLogger(e.log.Handler(), slog.LevelDebug),
	}
	srv.SetKeepAlivesEnabled(settings.keepAlive)

	if root := settings.documentRoot; root != "" {
		if st, err := os.Stat(root); err == nil && st.IsDir() {
			e.files = http.FileServer(http.Dir(root))
		} else {
			e.log.Warn("document root unavailable, serving 404 for unclaimed requests", "document_root", root)
		}
	}

	e.settings = settings
	e.cb = cb
	e.srv = srv
	e.ln = ln
	e.started = true

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error("http serve failed", "error", err)
		}
	}()

	e.log.Info("http engine listening",
		"addr", ln.Addr().String(),
		"keep_alive", settings.keepAlive,
		"h2c", settings.h2c,
		"max_connections", settings.maxConnections,
	)
	return nil
}

// Poll waits up to timeout for WebSocket activity.
func (e *HTTPEngine) Poll(timeout time.Duration) {
	if timeout <= 0 {
		select {
		case <-e.wake:
		default:
		}
		return
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-e.wake:
	case <-t.C:
	}
}

// IterateWebSockets hands each socket's pending bytes to the callbacks and
// reports sockets whose reader has stopped.
func (e *HTTPEngine) IterateWebSockets() {
	cb := e.callbacks()
	if cb == nil {
		return
	}

	for _, c := range e.snapshot() {
		data, gone := c.drain()
		if len(data) > 0 {
			switch cb.OnWebSocketData(c, data) {
			case DispositionFinalize:
				_ = c.Close()
			case DispositionUnknown:
				e.log.Debug("dropping data for unowned websocket", "remote", c.remote, "bytes", len(data))
			}
		}
		if gone {
			e.untrack(c)
			cb.OnWebSocketClose(c)
		}
	}
}

// Addr returns the bound address, or nil before Start.
func (e *HTTPEngine) Addr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ln == nil {
		return nil
	}
	return e.ln.Addr()
}

// Destroy closes every WebSocket and shuts the HTTP server down.
func (e *HTTPEngine) Destroy() error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return ErrNotStarted
	}
	if e.destroyed {
		e.mu.Unlock()
		return nil
	}
	e.destroyed = true
	srv := e.srv
	sockets := e.sockets
	e.sockets = make(map[*wsConn]struct{})
	e.mu.Unlock()

	for c := range sockets {
		c.cancel()
		_ = c.ws.CloseNow()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("shutdown http server: %w", err)
	}
	e.log.Info("http engine stopped")
	return nil
}

func (e *HTTPEngine) callbacks() Callbacks {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return nil
	}
	return e.cb
}

func (e *HTTPEngine) snapshot() []*wsConn {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*wsConn, 0, len(e.sockets))
	for c := range e.sockets {
		out = append(out, c)
	}
	return out
}

func (e *HTTPEngine) track(c *wsConn) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return false
	}
	e.sockets[c] = struct{}{}
	return true
}

func (e *HTTPEngine) untrack(c *wsConn) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sockets, c)
}

func (e *HTTPEngine) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *HTTPEngine) serveHTTP(w http.ResponseWriter, r *http.Request) {
	cb := e.callbacks()
	if cb == nil {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	if !cb.ShouldHandle(r.Method, r.URL.Path) {
		e.fallback(w, r)
		return
	}

	if isWebSocketUpgrade(r) {
		e.upgrade(cb, w, r)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, e.settings.maxRequestSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	c := &httpConn{w: w, r: r, body: body}
	if cb.OnRequest(c) || c.wrote() {
		return
	}
	e.fallback(w, r)
}

func (e *HTTPEngine) fallback(w http.ResponseWriter, r *http.Request) {
	if e.files != nil {
		e.files.ServeHTTP(w, r)
		return
	}
	http.NotFound(w, r)
}

func (e *HTTPEngine) upgrade(cb Callbacks, w http.ResponseWriter, r *http.Request) {
	wsc, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  e.settings.origins,
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		e.log.Debug("websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	if e.settings.readLimit > 0 {
		wsc.SetReadLimit(e.settings.readLimit)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &wsConn{
		ws:     wsc,
		ctx:    ctx,
		cancel: cancel,
		out:    make(chan outFrame, e.settings.sendQueue),
		log:    e.log,
		method: r.Method,
		path:   r.URL.Path,
		query:  r.URL.RawQuery,
		header: r.Header.Clone(),
		remote: r.RemoteAddr,
	}
	if !e.track(c) {
		cancel()
		_ = wsc.CloseNow()
		return
	}

	go c.writeLoop()
	cb.OnWebSocketUpgrade(c)
	go e.readLoop(c)
}

func (e *HTTPEngine) readLoop(c *wsConn) {
	defer c.cancel()
	for {
		_, data, err := c.ws.Read(c.ctx)
		if err != nil {
			c.markGone()
			e.signal()
			return
		}
		c.push(data)
		e.signal()
	}
}

func isWebSocketUpgrade(r *http.Request) bool {
	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return false
	}
	for _, v := range r.Header.Values("Connection") {
		for _, tok := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(tok), "upgrade") {
				return true
			}
		}
	}
	return false
}

// httpConn is one plain HTTP request.
type httpConn struct {
	w    http.ResponseWriter
	r    *http.Request
	body []byte

	mu      sync.Mutex
	written bool
}

func (c *httpConn) Method() string      { return c.r.Method }
func (c *httpConn) URL() string         { return c.r.URL.Path }
func (c *httpConn) Query() string       { return c.r.URL.RawQuery }
func (c *httpConn) Header() http.Header { return c.r.Header }
func (c *httpConn) Body() []byte        { return c.body }
func (c *httpConn) RemoteAddr() string  { return c.r.RemoteAddr }
func (c *httpConn) IsWebSocket() bool   { return false }

func (c *httpConn) WriteResponse(status int, header http.Header, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.written {
		return ErrConnClosed
	}
	c.written = true

	h := c.w.Header()
	for k, vs := range header {
		h[k] = append([]string(nil), vs...)
	}
	if h.Get("Content-Length") == "" {
		h.Set("Content-Length", strconv.Itoa(len(body)))
	}
	if status == 0 {
		status = http.StatusOK
	}
	c.w.WriteHeader(status)
	if c.r.Method == http.MethodHead {
		return nil
	}
	_, err := c.w.Write(body)
	return err
}

func (c *httpConn) WriteFrame(Opcode, []byte) error { return ErrNotWebSocket }
func (c *httpConn) Close() error                    { return nil }

func (c *httpConn) wrote() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written
}

// wsConn is one accepted WebSocket.
type wsConn struct {
	ws     *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	out    chan outFrame
	log    *slog.Logger

	method string
	path   string
	query  string
	header http.Header
	remote string

	mu      sync.Mutex
	pending []byte
	gone    bool

	closeOnce sync.Once
	closeSent bool
}

func (c *wsConn) Method() string      { return c.method }
func (c *wsConn) URL() string         { return c.path }
func (c *wsConn) Query() string       { return c.query }
func (c *wsConn) Header() http.Header { return c.header }
func (c *wsConn) Body() []byte        { return nil }
func (c *wsConn) RemoteAddr() string  { return c.remote }
func (c *wsConn) IsWebSocket() bool   { return true }

func (c *wsConn) WriteResponse(int, http.Header, []byte) error { return ErrNotHTTP }

func (c *wsConn) WriteFrame(op Opcode, data []byte) error {
	switch op {
	case OpcodeText:
		return c.enqueue(outFrame{typ: websocket.MessageText, data: bytes.Clone(data)})
	case OpcodeBinary:
		return c.enqueue(outFrame{typ: websocket.MessageBinary, data: bytes.Clone(data)})
	case OpcodePing:
		return c.enqueue(outFrame{ping: true})
	case OpcodeClose:
		reason := string(data)
		if len(reason) > maxCloseReason {
			reason = reason[:maxCloseReason]
		}
		c.closeWith(websocket.StatusNormalClosure, reason)
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedOpcode, op)
	}
}

// Close queues a close handshake behind any frames already queued.
func (c *wsConn) Close() error {
	c.closeWith(websocket.StatusNormalClosure, "")
	return nil
}

// outFrame is one queued write. A frame with close set ends the writer.
type outFrame struct {
	typ    websocket.MessageType
	data   []byte
	ping   bool
	close  bool
	code   websocket.StatusCode
	reason string
}

func (c *wsConn) enqueue(f outFrame) error {
	if c.ctx.Err() != nil || c.closing() {
		return ErrConnClosed
	}
	select {
	case c.out <- f:
		return nil
	default:
		c.log.Warn("disconnecting slow websocket peer", "remote", c.remote, "queued", cap(c.out))
		c.abort()
		return ErrSlowPeer
	}
}

func (c *wsConn) closeWith(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closeSent = true
		c.mu.Unlock()
		select {
		case c.out <- outFrame{close: true, code: code, reason: reason}:
		default:
			c.abort()
		}
	})
}

func (c *wsConn) closing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeSent
}

// abort drops the connection without a close handshake. It never waits on
// the writer goroutine.
func (c *wsConn) abort() {
	c.cancel()
	go func() { _ = c.ws.CloseNow() }()
}

// writeLoop performs queued writes in order until the connection ends.
func (c *wsConn) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case f := <-c.out:
			if f.close {
				if err := c.ws.Close(f.code, f.reason); err != nil {
					_ = c.ws.CloseNow()
				}
				c.cancel()
				return
			}
			if err := c.writeOne(f); err != nil {
				if c.ctx.Err() == nil {
					c.log.Debug("websocket write failed", "remote", c.remote, "error", err)
				}
				c.abort()
				return
			}
		}
	}
}

func (c *wsConn) writeOne(f outFrame) error {
	ctx, cancel := context.WithTimeout(c.ctx, frameTimeout)
	defer cancel()
	if f.ping {
		return c.ws.Ping(ctx)
	}
	return c.ws.Write(ctx, f.typ, f.data)
}

func (c *wsConn) push(data []byte) {
	c.mu.Lock()
	c.pending = append(c.pending, data...)
	c.mu.Unlock()
}

func (c *wsConn) markGone() {
	c.mu.Lock()
	c.gone = true
	c.mu.Unlock()
}

// drain returns the pending bytes and whether the reader has stopped. When
// gone is true every byte the reader saw is included.
func (c *wsConn) drain() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data := c.pending
	c.pending = nil
	return data, c.gone
}
