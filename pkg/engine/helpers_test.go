package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/getmockd/frontd/pkg/config"
	"github.com/getmockd/frontd/pkg/controller"
	"github.com/getmockd/frontd/pkg/httpmsg"
	"github.com/getmockd/frontd/pkg/transport/transporttest"
	"github.com/getmockd/frontd/pkg/websocket"
)

// recordingController routes like controller.Base and records every
// WebSocket event it sees.
type recordingController struct {
	controller.Base

	mu     sync.Mutex
	setups int
	ready  []int64
	data   []string
	closed []int64
	onData func(ws *websocket.WebSocket, data []byte)
	own    *websocket.Registry
}

func newRecordingController() *recordingController {
	return &recordingController{own: websocket.NewRegistry()}
}

// textController answers method+path with body.
func textController(method, path, body string) *recordingController {
	c := newRecordingController()
	c.AddRoute(method, path, func(_ *httpmsg.Request, resp *httpmsg.Response) {
		_, _ = resp.WriteString(body)
	})
	return c
}

func (c *recordingController) Setup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setups++
}

func (c *recordingController) WebSocketReady(ws *websocket.WebSocket) {
	_ = c.own.Add(ws)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = append(c.ready, ws.ID())
}

func (c *recordingController) WebSocketData(ws *websocket.WebSocket, data []byte) {
	c.mu.Lock()
	c.data = append(c.data, string(data))
	fn := c.onData
	c.mu.Unlock()
	if fn != nil {
		fn(ws, data)
	}
}

func (c *recordingController) WebSocketClosed(ws *websocket.WebSocket) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = append(c.closed, ws.ID())
}

func (c *recordingController) Ready() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.ready...)
}

func (c *recordingController) Data() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.data...)
}

func (c *recordingController) Closed() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.closed...)
}

// nilController claims a path and answers nothing.
type nilController struct {
	controller.Base
	path string
}

func (c *nilController) Handles(_, url string) bool { return url == c.path }

func (c *nilController) Process(*httpmsg.Request) *httpmsg.Response { return nil }

func testConfig(poll time.Duration) *config.Config {
	cfg := config.DefaultConfig()
	cfg.PollInterval = config.Duration(poll)
	return cfg
}

// newTestServer returns a server on fake engines polling every poll.
func newTestServer(t *testing.T, poll time.Duration, opts ...Option) (*Server, *transporttest.Recorder) {
	t.Helper()
	rec := &transporttest.Recorder{}
	srv := New(testConfig(poll), append([]Option{WithEngineFactory(rec.Factory())}, opts...)...)
	t.Cleanup(func() {
		if e := rec.Last(); e != nil {
			stopServer(t, srv, e)
		}
	})
	return srv, rec
}

// startServer starts srv and returns its fake engine.
func startServer(t *testing.T, srv *Server, rec *transporttest.Recorder) *transporttest.Engine {
	t.Helper()
	require.NoError(t, srv.Start())
	eng := rec.Last()
	require.NotNil(t, eng)
	return eng
}

// stopServer stops srv, waking the fake engine until the poll loop notices.
func stopServer(t *testing.T, srv *Server, eng *transporttest.Engine) {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- srv.Stop() }()

	deadline := time.After(5 * time.Second)
	for {
		eng.Wake()
		select {
		case err := <-errc:
			require.NoError(t, err)
			return
		case <-deadline:
			t.Fatal("server did not stop")
		case <-time.After(time.Millisecond):
		}
	}
}
