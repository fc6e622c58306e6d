package demo

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/getmockd/frontd/pkg/controller"
	"github.com/getmockd/frontd/pkg/httpmsg"
	"github.com/getmockd/frontd/pkg/websocket"
)

// Chat commands.
const (
	CommandQuit = "/quit"
	CommandWho  = "/who"
)

// Chat is a single chat room. Every WebSocket opened on the upgrade path
// joins it; messages are broadcast to everyone in the room.
type Chat struct {
	*controller.WebController
	room *websocket.Registry
}

// NewChat creates an empty room.
func NewChat(gcDivisor int) *Chat {
	return &Chat{
		WebController: controller.NewWebController(gcDivisor),
		room:          websocket.NewRegistry(),
	}
}

// Room returns the members registry.
func (c *Chat) Room() *websocket.Registry { return c.room }

func (c *Chat) Setup() {
	c.AddRoute(http.MethodGet, "/chat", c.page)
}

func (c *Chat) page(_ *httpmsg.Request, resp *httpmsg.Response) {
	fmt.Fprintf(resp, chatPage, c.room.Count())
}

func (c *Chat) WebSocketReady(ws *websocket.WebSocket) {
	if err := c.room.Add(ws); err != nil {
		return
	}
	_ = ws.SendText(fmt.Sprintf("welcome, you are #%d", ws.ID()))
	c.announce(ws, "joined")
}

func (c *Chat) WebSocketData(ws *websocket.WebSocket, data []byte) {
	if c.room.Get(ws.Conn()) == nil {
		return
	}

	msg := strings.TrimSpace(string(data))
	switch msg {
	case "":
		return
	case CommandQuit:
		_ = ws.SendText("bye")
		_ = ws.Close()
	case CommandWho:
		_ = ws.SendText(fmt.Sprintf("%d online", c.room.Count()))
	default:
		c.room.Broadcast([]byte(fmt.Sprintf("#%d: %s", ws.ID(), msg)), websocket.OpcodeText)
	}
}

// WebSocketClosed tells the room a member left.
func (c *Chat) WebSocketClosed(ws *websocket.WebSocket) {
	c.Logger().Debug("chat member left", "id", ws.ID())
	c.announce(ws, "left")
}

func (c *Chat) announce(ws *websocket.WebSocket, what string) {
	text := []byte(fmt.Sprintf("* #%d %s", ws.ID(), what))
	c.room.Each(func(other *websocket.WebSocket) {
		if other != ws {
			_ = other.Send(text, websocket.OpcodeText)
		}
	})
}

const chatPage = `<!doctype html>
<html>
<head><title>frontd chat</title></head>
<body>
<p>%d online</p>
<pre id="log"></pre>
<input id="msg" autofocus>
<script>
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/websocket");
const log = document.getElementById("log");
ws.onmessage = (e) => { log.textContent += e.data + "\n"; };
document.getElementById("msg").onkeydown = (e) => {
  if (e.key === "Enter") { ws.send(e.target.value); e.target.value = ""; }
};
</script>
</body>
</html>
`
