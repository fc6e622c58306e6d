package websocket

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/getmockd/frontd/pkg/httpmsg"
	"github.com/getmockd/frontd/pkg/logging"
	"github.com/getmockd/frontd/pkg/transport"
)

// Registry tracks live WebSockets by connection and by id.
//
// The server owns one registry and assigns ids through Open. Controllers may
// keep their own registries and Add sockets to them; a socket closed anywhere
// is released from all of them.
type Registry struct {
	log *slog.Logger

	mu     sync.RWMutex
	byConn map[transport.Conn]*WebSocket
	byID   map[int64]*WebSocket

	nextID     atomic.Int64
	opened     atomic.Int64
	removed    atomic.Int64
	broadcasts atomic.Int64
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(log *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		log:    logging.Nop(),
		byConn: make(map[transport.Conn]*WebSocket),
		byID:   make(map[int64]*WebSocket),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ============================================================================
// Membership
// ============================================================================

// Open wraps a freshly upgraded connection, gives it the next id and adds it.
func (r *Registry) Open(conn transport.Conn, req *httpmsg.Request) *WebSocket {
	w := newWebSocket(r.nextID.Add(1), conn, req)

	r.mu.Lock()
	r.byConn[conn] = w
	r.byID[w.id] = w
	r.mu.Unlock()

	w.addContainer(r)
	r.opened.Add(1)
	r.log.Debug("websocket opened", "id", w.id, "remote", conn.RemoteAddr())
	return w
}

// Add registers a WebSocket opened elsewhere. Closed sockets are refused.
func (r *Registry) Add(w *WebSocket) error {
	if w.IsClosed() {
		return ErrClosed
	}

	r.mu.Lock()
	r.byConn[w.conn] = w
	r.byID[w.id] = w
	r.mu.Unlock()

	w.addContainer(r)

	// A close that raced with the insert has already notified its
	// containers, possibly without us.
	if w.IsClosed() {
		r.Remove(w)
		return ErrClosed
	}
	return nil
}

// Remove drops w and reports whether it was present.
func (r *Registry) Remove(w *WebSocket) bool {
	r.mu.Lock()
	present := r.byID[w.id] == w
	if present {
		delete(r.byID, w.id)
		if r.byConn[w.conn] == w {
			delete(r.byConn, w.conn)
		}
	}
	r.mu.Unlock()

	w.removeContainer(r)
	if present {
		r.removed.Add(1)
		r.log.Debug("websocket removed", "id", w.id)
	}
	return present
}

// Clean removes every closed WebSocket and returns how many it removed.
func (r *Registry) Clean() int {
	r.mu.RLock()
	var stale []*WebSocket
	for _, w := range r.byID {
		if w.IsClosed() {
			stale = append(stale, w)
		}
	}
	r.mu.RUnlock()

	n := 0
	for _, w := range stale {
		if r.Remove(w) {
			n++
		}
	}
	return n
}

// ============================================================================
// Lookup
// ============================================================================

// Get returns the WebSocket for conn, or nil.
func (r *Registry) Get(conn transport.Conn) *WebSocket {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byConn[conn]
}

// Lookup is Get with an error for unknown connections.
func (r *Registry) Lookup(conn transport.Conn) (*WebSocket, error) {
	if w := r.Get(conn); w != nil {
		return w, nil
	}
	return nil, ErrUnknownConnection
}

// GetByID returns the WebSocket with the given id, or nil.
func (r *Registry) GetByID(id int64) *WebSocket {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// Count returns the number of registered WebSockets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Each calls fn for every registered WebSocket in id order. fn runs on a
// snapshot, so it may add or remove sockets.
func (r *Registry) Each(fn func(*WebSocket)) {
	for _, w := range r.snapshot() {
		fn(w)
	}
}

func (r *Registry) snapshot() []*WebSocket {
	r.mu.RLock()
	out := make([]*WebSocket, 0, len(r.byID))
	for _, w := range r.byID {
		out = append(out, w)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// ============================================================================
// Bulk operations
// ============================================================================

// Broadcast sends data to every open WebSocket and returns how many sends
// succeeded.
func (r *Registry) Broadcast(data []byte, op Opcode) int {
	r.broadcasts.Add(1)
	sent := 0
	for _, w := range r.snapshot() {
		if w.IsClosed() {
			continue
		}
		if err := w.Send(data, op); err != nil {
			r.log.Debug("broadcast send failed", "id", w.id, "error", err)
			continue
		}
		sent++
	}
	return sent
}

// CloseAll closes every registered WebSocket and returns how many it closed.
func (r *Registry) CloseAll() int {
	n := 0
	for _, w := range r.snapshot() {
		if err := w.Close(); err == nil {
			n++
		}
	}
	return n
}

// Stats returns registry counters.
func (r *Registry) Stats() Stats {
	return Stats{
		Open:       r.Count(),
		Opened:     r.opened.Load(),
		Removed:    r.removed.Load(),
		Broadcasts: r.broadcasts.Load(),
	}
}
