package websocket

import "errors"

// Common errors for the websocket package.
var (
	// ErrClosed indicates the WebSocket has been closed.
	ErrClosed = errors.New("websocket closed")
	// ErrUnknownConnection indicates no WebSocket is registered for a connection.
	ErrUnknownConnection = errors.New("unknown websocket connection")
)
