// Package controller defines the request handlers the dispatch core routes to.
//
// A controller claims requests with Handles and answers them with Process.
// It is also told about every WebSocket the server accepts and every message
// those sockets deliver. Most controllers embed one of the provided bases:
//
//   - Base: route table with exact and glob paths, no pre-processing
//   - WebController: Base plus HTML content type, sessions and periodic session GC
//   - JSONController: WebController answering with application/json
//   - RouterController: WebController that delegates to a chi router
package controller

import (
	"log/slog"

	"github.com/getmockd/frontd/pkg/httpmsg"
	"github.com/getmockd/frontd/pkg/session"
	"github.com/getmockd/frontd/pkg/websocket"
)

// Controller is what the server needs from every registered handler.
type Controller interface {
	// Setup runs once, when the controller is registered.
	Setup()
	// Handles reports whether the controller claims the request.
	Handles(method, url string) bool
	// Process answers a claimed request. A nil response means "not handled".
	Process(req *httpmsg.Request) *httpmsg.Response
	// WebSocketReady is called for every accepted WebSocket.
	WebSocketReady(ws *websocket.WebSocket)
	// WebSocketData is called with every message a WebSocket delivers.
	WebSocketData(ws *websocket.WebSocket, data []byte)
}

// Host is the server as seen by its controllers.
type Host interface {
	Sessions() *session.Store
	WebSockets() *websocket.Registry
	Logger() *slog.Logger
}

// Bindable controllers are given the host before Setup runs.
type Bindable interface {
	Bind(h Host)
}

// WebSocketCloser controllers are told when a WebSocket goes away.
type WebSocketCloser interface {
	WebSocketClosed(ws *websocket.WebSocket)
}

// HandlerFunc answers one routed request by filling resp.
type HandlerFunc func(req *httpmsg.Request, resp *httpmsg.Response)

// PreProcessFunc runs after a request is claimed and before its handler.
type PreProcessFunc func(req *httpmsg.Request, resp *httpmsg.Response)
