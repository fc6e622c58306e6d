package transport

import (
	"errors"
	"net"
	"net/http"
	"time"
)

// Opcode is a WebSocket frame opcode.
type Opcode byte

// WebSocket opcodes.
const (
	OpcodeContinuation Opcode = 0x0
	OpcodeText         Opcode = 0x1
	OpcodeBinary       Opcode = 0x2
	OpcodeClose        Opcode = 0x8
	OpcodePing         Opcode = 0x9
	OpcodePong         Opcode = 0xa
)

// String returns the opcode name.
func (o Opcode) String() string {
	switch o {
	case OpcodeContinuation:
		return "continuation"
	case OpcodeText:
		return "text"
	case OpcodeBinary:
		return "binary"
	case OpcodeClose:
		return "close"
	case OpcodePing:
		return "ping"
	case OpcodePong:
		return "pong"
	default:
		return "unknown"
	}
}

// Disposition tells the engine what to do with a WebSocket after its data
// has been delivered.
type Disposition int

const (
	// DispositionUnknown means the callee does not own the connection.
	// The engine treats it as an ordinary stream.
	DispositionUnknown Disposition = iota
	// DispositionKeepOpen keeps the connection alive.
	DispositionKeepOpen
	// DispositionFinalize asks the engine to close the connection.
	DispositionFinalize
)

// Errors returned by connections and engines.
var (
	ErrNotWebSocket      = errors.New("transport: connection is not a websocket")
	ErrNotHTTP           = errors.New("transport: connection is a websocket")
	ErrUnsupportedOpcode = errors.New("transport: unsupported opcode")
	ErrNotStarted        = errors.New("transport: engine not started")
	ErrAlreadyStarted    = errors.New("transport: engine already started")
	ErrConnClosed        = errors.New("transport: connection closed")
	ErrSlowPeer          = errors.New("transport: send queue full, peer too slow")
)

// Conn is the engine's handle for one client connection. It is comparable
// and stays stable for the lifetime of the connection, so it can be used as
// a map key.
type Conn interface {
	Method() string
	// URL returns the request path without the query string.
	URL() string
	// Query returns the raw query string.
	Query() string
	Header() http.Header
	Body() []byte
	RemoteAddr() string
	IsWebSocket() bool

	// WriteResponse writes a complete HTTP response.
	WriteResponse(status int, header http.Header, body []byte) error
	// WriteFrame sends one WebSocket frame.
	WriteFrame(op Opcode, data []byte) error
	Close() error
}

// Callbacks is how an engine hands work to its owner.
//
// OnRequest may be called concurrently from many goroutines. The WebSocket
// data and close callbacks are only ever called from IterateWebSockets.
type Callbacks interface {
	// ShouldHandle reports whether the owner wants the request. Requests it
	// declines get the engine's default behaviour.
	ShouldHandle(method, url string) bool
	// OnRequest handles an HTTP request and reports whether a response was written.
	OnRequest(c Conn) bool
	OnWebSocketUpgrade(c Conn)
	OnWebSocketData(c Conn, data []byte) Disposition
	// OnWebSocketClose reports a WebSocket the peer or the network closed.
	OnWebSocketClose(c Conn)
}

// Engine is a network engine driven by a poll loop.
type Engine interface {
	// SetOption records a configuration value. Unknown keys are ignored.
	SetOption(key, value string) error
	Start(cb Callbacks) error
	// Poll services network I/O for at most timeout. It returns early when
	// WebSocket data is pending.
	Poll(timeout time.Duration)
	// IterateWebSockets delivers the bytes each WebSocket received since the
	// previous call, one OnWebSocketData call per connection.
	IterateWebSockets()
	Addr() net.Addr
	Destroy() error
}

// Factory creates a fresh, unstarted engine.
type Factory func() Engine
