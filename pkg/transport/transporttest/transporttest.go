// Package transporttest provides an in-memory transport.Engine for tests.
//
// The fake never touches the network. Tests drive it explicitly: Request
// simulates an HTTP request, Upgrade a WebSocket handshake, Conn.Receive an
// inbound frame and Disconnect a peer going away. Poll and IterateWebSockets
// behave like a real engine's, so a Server's poll loop can run against it.
package transporttest

import (
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getmockd/frontd/pkg/transport"
)

// Frame is a frame written to a fake WebSocket.
type Frame struct {
	Opcode transport.Opcode
	Data   []byte
}

// Engine is a fake transport.Engine.
type Engine struct {
	mu        sync.Mutex
	options   map[string]string
	cb        transport.Callbacks
	started   bool
	destroyed bool
	sockets   []*Conn
	startErr  error

	polls atomic.Int64
	wake  chan struct{}
}

// New returns an unstarted fake engine.
func New() *Engine {
	return &Engine{
		options: make(map[string]string),
		wake:    make(chan struct{}, 1),
	}
}

// Recorder hands out fresh fake engines and remembers each of them.
type Recorder struct {
	mu      sync.Mutex
	engines []*Engine
}

// Factory returns a transport.Factory that records every engine it makes.
func (r *Recorder) Factory() transport.Factory {
	return func() transport.Engine {
		e := New()
		r.mu.Lock()
		r.engines = append(r.engines, e)
		r.mu.Unlock()
		return e
	}
}

// Engines returns the engines created so far.
func (r *Recorder) Engines() []*Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Engine(nil), r.engines...)
}

// Last returns the most recently created engine, or nil.
func (r *Recorder) Last() *Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.engines) == 0 {
		return nil
	}
	return r.engines[len(r.engines)-1]
}

// FailStart makes the next Start return err.
func (e *Engine) FailStart(err error) {
	e.mu.Lock()
	e.startErr = err
	e.mu.Unlock()
}

func (e *Engine) SetOption(key, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.options[key] = value
	return nil
}

func (e *Engine) Start(cb transport.Callbacks) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.startErr != nil {
		return e.startErr
	}
	if e.started {
		return transport.ErrAlreadyStarted
	}
	e.cb = cb
	e.started = true
	return nil
}

func (e *Engine) Poll(timeout time.Duration) {
	e.polls.Add(1)
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-e.wake:
	case <-t.C:
	}
}

func (e *Engine) IterateWebSockets() {
	e.mu.Lock()
	cb := e.cb
	sockets := append([]*Conn(nil), e.sockets...)
	e.mu.Unlock()
	if cb == nil {
		return
	}

	for _, c := range sockets {
		data, gone := c.drain()
		if len(data) > 0 && cb.OnWebSocketData(c, data) == transport.DispositionFinalize {
			_ = c.Close()
		}
		if gone {
			e.remove(c)
			cb.OnWebSocketClose(c)
		}
	}
}

func (e *Engine) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)}
}

func (e *Engine) Destroy() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return transport.ErrNotStarted
	}
	e.destroyed = true
	e.cb = nil
	return nil
}

// Options returns a copy of the options set so far.
func (e *Engine) Options() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]string, len(e.options))
	for k, v := range e.options {
		out[k] = v
	}
	return out
}

// Started reports whether Start succeeded.
func (e *Engine) Started() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

// Destroyed reports whether Destroy was called.
func (e *Engine) Destroyed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.destroyed
}

// Polls returns how many times Poll was entered.
func (e *Engine) Polls() int64 {
	return e.polls.Load()
}

// Wake makes a pending Poll return.
func (e *Engine) Wake() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Request simulates an HTTP request. It reports whether the owner handled
// it; unclaimed requests are not passed to OnRequest.
func (e *Engine) Request(method, target string, body []byte) (*Conn, bool) {
	c := NewConn(method, target, body)
	cb := e.callbacks()
	if cb == nil || !cb.ShouldHandle(c.Method(), c.URL()) {
		return c, false
	}
	return c, cb.OnRequest(c)
}

// Upgrade simulates a completed WebSocket handshake on target.
func (e *Engine) Upgrade(target string) *Conn {
	c := NewWebSocketConn(target)
	e.mu.Lock()
	e.sockets = append(e.sockets, c)
	cb := e.cb
	e.mu.Unlock()
	if cb != nil {
		cb.OnWebSocketUpgrade(c)
	}
	return c
}

// Disconnect simulates the peer going away. The close is reported on the
// next IterateWebSockets.
func (e *Engine) Disconnect(c *Conn) {
	c.mu.Lock()
	c.gone = true
	c.mu.Unlock()
	e.Wake()
}

// WebSocketCount returns the number of sockets the fake still tracks.
func (e *Engine) WebSocketCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sockets)
}

func (e *Engine) callbacks() transport.Callbacks {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cb
}

func (e *Engine) remove(c *Conn) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, s := range e.sockets {
		if s == c {
			e.sockets = append(e.sockets[:i], e.sockets[i+1:]...)
			return
		}
	}
}

// Conn is a fake transport.Conn.
type Conn struct {
	method string
	path   string
	query  string
	header http.Header
	body   []byte
	remote string
	ws     bool

	mu         sync.Mutex
	status     int
	respHeader http.Header
	respBody   []byte
	written    bool
	frames     []Frame
	pending    []byte
	gone       bool
	closed     bool
}

// NewConn creates a plain HTTP connection for target, which may carry a query.
func NewConn(method, target string, body []byte) *Conn {
	c := &Conn{
		method: method,
		path:   target,
		header: make(http.Header),
		body:   body,
		remote: "127.0.0.1:40000",
	}
	if u, err := url.Parse(target); err == nil {
		c.path = u.Path
		c.query = u.RawQuery
	}
	return c
}

// NewWebSocketConn creates an upgraded connection for target. It is not
// attached to any engine; use Engine.Upgrade for that.
func NewWebSocketConn(target string) *Conn {
	c := NewConn(http.MethodGet, target, nil)
	c.ws = true
	return c
}

// SetHeader sets a request header before the request is dispatched.
func (c *Conn) SetHeader(key, value string) *Conn {
	c.header.Set(key, value)
	return c
}

func (c *Conn) Method() string      { return c.method }
func (c *Conn) URL() string         { return c.path }
func (c *Conn) Query() string       { return c.query }
func (c *Conn) Header() http.Header { return c.header }
func (c *Conn) Body() []byte        { return c.body }
func (c *Conn) RemoteAddr() string  { return c.remote }
func (c *Conn) IsWebSocket() bool   { return c.ws }

func (c *Conn) WriteResponse(status int, header http.Header, body []byte) error {
	if c.ws {
		return transport.ErrNotHTTP
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
	c.respHeader = header.Clone()
	c.respBody = append([]byte(nil), body...)
	c.written = true
	return nil
}

func (c *Conn) WriteFrame(op transport.Opcode, data []byte) error {
	if !c.ws {
		return transport.ErrNotWebSocket
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return transport.ErrConnClosed
	}
	c.frames = append(c.frames, Frame{Opcode: op, Data: append([]byte(nil), data...)})
	if op == transport.OpcodeClose {
		c.closed = true
	}
	return nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Receive queues inbound bytes for the next IterateWebSockets.
func (c *Conn) Receive(data string) {
	c.mu.Lock()
	c.pending = append(c.pending, data...)
	c.mu.Unlock()
}

// Response returns what was written by WriteResponse.
func (c *Conn) Response() (status int, header http.Header, body []byte, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.respHeader, c.respBody, c.written
}

// Frames returns the frames written so far.
func (c *Conn) Frames() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Frame(nil), c.frames...)
}

// Closed reports whether the connection was closed locally.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) drain() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data := c.pending
	c.pending = nil
	return data, c.gone
}
