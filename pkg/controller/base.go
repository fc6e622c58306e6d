package controller

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/getmockd/frontd/pkg/httpmsg"
	"github.com/getmockd/frontd/pkg/logging"
	"github.com/getmockd/frontd/pkg/session"
	"github.com/getmockd/frontd/pkg/websocket"
)

// AnyMethod matches every HTTP method.
const AnyMethod = "*"

type route struct {
	method  string
	pattern string
	glob    bool
	handler HandlerFunc
}

func (r route) matches(method, url string) bool {
	if r.method != AnyMethod && !strings.EqualFold(r.method, method) {
		return false
	}
	if !r.glob {
		return r.pattern == url
	}
	ok, err := doublestar.Match(r.pattern, url)
	return err == nil && ok
}

// Base is a controller with a route table and nothing else. Embed it and
// register routes in Setup.
//
// Routes are tried in registration order. A pattern containing glob
// metacharacters (*, ?, [ or {) is matched with doublestar, so "/static/**"
// covers every path below /static.
type Base struct {
	prefix string
	pre    PreProcessFunc

	mu     sync.RWMutex
	routes []route
	host   Host
}

// SetPrefix sets a path prefix prepended to routes added afterwards.
func (b *Base) SetPrefix(prefix string) {
	b.prefix = strings.TrimSuffix(prefix, "/")
}

// SetPreProcess installs the hook run before every handler.
func (b *Base) SetPreProcess(fn PreProcessFunc) {
	b.pre = fn
}

// AddRoute registers handler for method and pattern.
func (b *Base) AddRoute(method, pattern string, handler HandlerFunc) {
	pattern = b.prefix + pattern
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes = append(b.routes, route{
		method:  method,
		pattern: pattern,
		glob:    strings.ContainsAny(pattern, "*?[{"),
		handler: handler,
	})
}

// Bind records the host.
func (b *Base) Bind(h Host) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.host = h
}

// Host returns the bound host, or nil before registration.
func (b *Base) Host() Host {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.host
}

// Sessions returns the host's session store, or nil when unbound.
func (b *Base) Sessions() *session.Store {
	if h := b.Host(); h != nil {
		return h.Sessions()
	}
	return nil
}

// Logger returns the host logger, or a no-op logger when unbound.
func (b *Base) Logger() *slog.Logger {
	if h := b.Host(); h != nil {
		return h.Logger()
	}
	return logging.Nop()
}

func (b *Base) Setup() {}

func (b *Base) Handles(method, url string) bool {
	_, ok := b.find(method, url)
	return ok
}

// Process runs the pre-process hook and the first matching route.
func (b *Base) Process(req *httpmsg.Request) *httpmsg.Response {
	handler, ok := b.find(req.Method(), req.URL())
	if !ok {
		return nil
	}

	resp := httpmsg.NewResponse()
	if b.pre != nil {
		b.pre(req, resp)
	}
	handler(req, resp)
	return resp
}

func (b *Base) WebSocketReady(*websocket.WebSocket)        {}
func (b *Base) WebSocketData(*websocket.WebSocket, []byte) {}

func (b *Base) find(method, url string) (HandlerFunc, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, r := range b.routes {
		if r.matches(method, url) {
			return r.handler, true
		}
	}
	return nil, false
}
