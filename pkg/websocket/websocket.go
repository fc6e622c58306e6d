package websocket

import (
	"encoding/json"
	"sync"

	"github.com/getmockd/frontd/pkg/httpmsg"
	"github.com/getmockd/frontd/pkg/transport"
)

// WebSocket wraps one upgraded connection.
//
// A WebSocket may belong to several registries at once: the server's global
// registry and any a controller keeps for its own purposes. Each registry it
// joins is recorded, and closing the socket releases it from all of them.
type WebSocket struct {
	id      int64
	conn    transport.Conn
	request *httpmsg.Request

	mu         sync.Mutex
	data       []byte
	closed     bool
	holds      int
	notifyDue  bool
	containers map[*Registry]struct{}
}

func newWebSocket(id int64, conn transport.Conn, req *httpmsg.Request) *WebSocket {
	return &WebSocket{
		id:         id,
		conn:       conn,
		request:    req,
		containers: make(map[*Registry]struct{}),
	}
}

// ID returns the identifier assigned at upgrade.
func (w *WebSocket) ID() int64 { return w.id }

// Conn returns the underlying engine connection.
func (w *WebSocket) Conn() transport.Conn { return w.conn }

// Request returns the upgrade request.
func (w *WebSocket) Request() *httpmsg.Request { return w.request }

// Send writes one frame. It fails with ErrClosed once the socket is closed.
func (w *WebSocket) Send(data []byte, op Opcode) error {
	if w.IsClosed() {
		return ErrClosed
	}
	return w.conn.WriteFrame(op, data)
}

// SendText sends a text frame.
func (w *WebSocket) SendText(text string) error {
	return w.Send([]byte(text), OpcodeText)
}

// SendJSON sends v as a JSON text frame.
func (w *WebSocket) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.Send(data, OpcodeText)
}

// Close sends a close frame and releases the socket from every registry
// holding it.
func (w *WebSocket) Close() error {
	if !w.setClosed() {
		return ErrClosed
	}
	return w.conn.WriteFrame(OpcodeClose, nil)
}

// MarkClosed records that the transport went away. No frame is sent.
// It reports whether this call performed the transition.
func (w *WebSocket) MarkClosed() bool {
	return w.setClosed()
}

// IsClosed reports whether Close or MarkClosed has run.
func (w *WebSocket) IsClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// AppendData buffers a received chunk.
func (w *WebSocket) AppendData(p []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.data = append(w.data, p...)
}

// FlushData returns everything buffered so far and empties the buffer.
func (w *WebSocket) FlushData() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	data := w.data
	w.data = nil
	return data
}

// BeginDispatch starts a hold during which a close does not release the
// socket from its registries. Holds nest.
func (w *WebSocket) BeginDispatch() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.holds++
}

// EndDispatch ends a hold. If the socket closed during the outermost hold,
// its registries are released now.
func (w *WebSocket) EndDispatch() {
	w.mu.Lock()
	if w.holds > 0 {
		w.holds--
	}
	due := w.holds == 0 && w.notifyDue
	if due {
		w.notifyDue = false
	}
	w.mu.Unlock()

	if due {
		w.notifyContainers()
	}
}

func (w *WebSocket) setClosed() bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	w.closed = true
	held := w.holds > 0
	if held {
		w.notifyDue = true
	}
	w.mu.Unlock()

	if !held {
		w.notifyContainers()
	}
	return true
}

// notifyContainers asks every registry holding w to drop it. Registries are
// called without w.mu held; Registry.Remove takes its own lock and then
// calls back into removeContainer.
func (w *WebSocket) notifyContainers() {
	w.mu.Lock()
	regs := make([]*Registry, 0, len(w.containers))
	for r := range w.containers {
		regs = append(regs, r)
	}
	w.mu.Unlock()

	for _, r := range regs {
		r.Remove(w)
	}
}

func (w *WebSocket) addContainer(r *Registry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.containers[r] = struct{}{}
}

func (w *WebSocket) removeContainer(r *Registry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.containers, r)
}

func (w *WebSocket) containerCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.containers)
}
