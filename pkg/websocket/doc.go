// Package websocket wraps upgraded connections and keeps them in registries.
//
// The dispatch core opens every upgraded connection in its own Registry,
// which assigns a process-unique id. Controllers that need to address a
// subset of sockets (a chat room, a subscription list) keep further
// registries and Add sockets to them:
//
//	room := websocket.NewRegistry()
//
//	func (c *Chat) WebSocketReady(ws *websocket.WebSocket) {
//		_ = room.Add(ws)
//	}
//
//	func (c *Chat) WebSocketData(ws *websocket.WebSocket, data []byte) {
//		room.Broadcast(data, websocket.OpcodeText)
//	}
//
// Closing a WebSocket, or the peer hanging up, removes it from every
// registry that holds it. While the core is delivering data to controllers
// the socket is held, and a close issued by a controller only takes effect on
// the registries once every controller has seen the data.
//
// Frames are written through github.com/coder/websocket by the HTTP engine.
package websocket
