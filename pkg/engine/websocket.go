package engine

import (
	"fmt"
	"runtime/debug"

	"github.com/getmockd/frontd/pkg/controller"
	"github.com/getmockd/frontd/pkg/httpmsg"
	"github.com/getmockd/frontd/pkg/transport"
	"github.com/getmockd/frontd/pkg/websocket"
)

// OnWebSocketUpgrade implements transport.Callbacks. The new socket joins
// the global registry and every controller is told about it.
func (s *Server) OnWebSocketUpgrade(c transport.Conn) {
	ws := s.sockets.Open(c, httpmsg.FromSource(c))
	s.sockets.Clean()
	s.metrics.WebSocketOpened()
	s.log.Debug("websocket ready", "id", ws.ID(), "url", c.URL(), "remote", c.RemoteAddr())

	for _, ctrl := range s.Controllers() {
		s.guard(ctrl, "WebSocketReady", func() { ctrl.WebSocketReady(ws) })
	}
}

// OnWebSocketData implements transport.Callbacks. data is everything the
// connection delivered since the last poll iteration.
func (s *Server) OnWebSocketData(c transport.Conn, data []byte) transport.Disposition {
	ws := s.sockets.Get(c)
	if ws == nil {
		return transport.DispositionUnknown
	}

	ws.AppendData(data)
	msg := ws.FlushData()
	s.metrics.WebSocketMessage(len(msg))

	ws.BeginDispatch()
	for _, ctrl := range s.Controllers() {
		s.guard(ctrl, "WebSocketData", func() { ctrl.WebSocketData(ws, msg) })
	}
	ws.EndDispatch()

	if ws.IsClosed() {
		s.sockets.Remove(ws)
		s.socketClosed(ws)
		return transport.DispositionFinalize
	}
	return transport.DispositionKeepOpen
}

// OnWebSocketClose implements transport.Callbacks. The peer is gone, so no
// close frame is sent.
func (s *Server) OnWebSocketClose(c transport.Conn) {
	ws := s.sockets.Get(c)
	if ws == nil {
		return
	}

	ws.BeginDispatch()
	if ws.MarkClosed() {
		s.socketClosed(ws)
	}
	ws.EndDispatch()
}

// socketClosed runs once per socket, after it was marked closed.
func (s *Server) socketClosed(ws *websocket.WebSocket) {
	s.metrics.WebSocketClosed()
	s.log.Debug("websocket closed", "id", ws.ID())
	for _, ctrl := range s.Controllers() {
		if closer, ok := ctrl.(controller.WebSocketCloser); ok {
			s.guard(ctrl, "WebSocketClosed", func() { closer.WebSocketClosed(ws) })
		}
	}
}

func (s *Server) guard(ctrl controller.Controller, hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.ControllerPanic()
			s.log.Error("controller panicked",
				"controller", fmt.Sprintf("%T", ctrl),
				"hook", hook,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn()
}
