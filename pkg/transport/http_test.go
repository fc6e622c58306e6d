package transport

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingCallbacks claims every path under /app and the /websocket path.
type recordingCallbacks struct {
	mu          sync.Mutex
	upgrades    []Conn
	data        []string
	closed      int
	disposition Disposition
}

func (r *recordingCallbacks) ShouldHandle(_, url string) bool {
	return strings.HasPrefix(url, "/app") || url == "/websocket"
}

func (r *recordingCallbacks) OnRequest(c Conn) bool {
	switch c.URL() {
	case "/app/decline":
		return false
	case "/app/echo":
		h := http.Header{}
		h.Set("Content-Type", "text/plain")
		_ = c.WriteResponse(http.StatusCreated, h, append([]byte(c.Method()+" "), c.Body()...))
		return true
	default:
		_ = c.WriteResponse(http.StatusOK, nil, []byte("ok "+c.Query()))
		return true
	}
}

func (r *recordingCallbacks) OnWebSocketUpgrade(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upgrades = append(r.upgrades, c)
}

func (r *recordingCallbacks) OnWebSocketData(_ Conn, data []byte) Disposition {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = append(r.data, string(data))
	return r.disposition
}

func (r *recordingCallbacks) OnWebSocketClose(Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
}

func (r *recordingCallbacks) snapshot() (upgrades []Conn, data []string, closed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Conn(nil), r.upgrades...), append([]string(nil), r.data...), r.closed
}

func startEngine(t *testing.T, cb Callbacks, opts map[string]string) (*HTTPEngine, string) {
	t.Helper()
	e := NewHTTPEngine()
	require.NoError(t, e.SetOption(OptionListeningPort, "127.0.0.1:0"))
	for k, v := range opts {
		require.NoError(t, e.SetOption(k, v))
	}
	require.NoError(t, e.Start(cb))
	t.Cleanup(func() { _ = e.Destroy() })
	return e, e.Addr().String()
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHTTPEngine_Requests(t *testing.T) {
	cb := &recordingCallbacks{}
	_, addr := startEngine(t, cb, nil)
	base := "http://" + addr

	t.Run("claimed request", func(t *testing.T) {
		status, body := get(t, base+"/app/hello?name=x")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "ok name=x", body)
	})

	t.Run("body and headers", func(t *testing.T) {
		resp, err := http.Post(base+"/app/echo", "text/plain", strings.NewReader("payload"))
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
		assert.Equal(t, "POST payload", string(body))
	})

	t.Run("unclaimed request is 404", func(t *testing.T) {
		status, _ := get(t, base+"/other")
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("declined request falls back", func(t *testing.T) {
		status, _ := get(t, base+"/app/decline")
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestHTTPEngine_DocumentRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.txt"), []byte("static"), 0o644))

	_, addr := startEngine(t, &recordingCallbacks{}, map[string]string{OptionDocumentRoot: root})

	status, body := get(t, "http://"+addr+"/index.txt")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "static", body)
}

func TestHTTPEngine_RequestTooLarge(t *testing.T) {
	_, addr := startEngine(t, &recordingCallbacks{}, map[string]string{OptionMaxRequestSize: "4"})

	resp, err := http.Post("http://"+addr+"/app/echo", "text/plain", strings.NewReader("too large"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestHTTPEngine_WebSocket(t *testing.T) {
	cb := &recordingCallbacks{disposition: DispositionKeepOpen}
	e, addr := startEngine(t, cb, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, _, err := websocket.Dial(ctx, "ws://"+addr+"/websocket", nil)
	require.NoError(t, err)
	defer client.CloseNow()

	require.Eventually(t, func() bool {
		upgrades, _, _ := cb.snapshot()
		return len(upgrades) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, client.Write(ctx, websocket.MessageText, []byte("hello")))

	require.Eventually(t, func() bool {
		e.Poll(20 * time.Millisecond)
		e.IterateWebSockets()
		_, data, _ := cb.snapshot()
		return strings.Join(data, "") == "hello"
	}, 2*time.Second, 10*time.Millisecond)

	upgrades, _, _ := cb.snapshot()
	conn := upgrades[0]
	assert.True(t, conn.IsWebSocket())
	assert.Equal(t, "/websocket", conn.URL())
	assert.ErrorIs(t, conn.WriteResponse(200, nil, nil), ErrNotHTTP)
	assert.ErrorIs(t, conn.WriteFrame(OpcodeContinuation, nil), ErrUnsupportedOpcode)

	require.NoError(t, conn.WriteFrame(OpcodeText, []byte("hi")))
	typ, msg, err := client.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)
	assert.Equal(t, "hi", string(msg))

	require.NoError(t, client.Close(websocket.StatusNormalClosure, "bye"))
	require.Eventually(t, func() bool {
		e.IterateWebSockets()
		_, _, closed := cb.snapshot()
		return closed == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHTTPEngine_FinalizeClosesSocket(t *testing.T) {
	cb := &recordingCallbacks{disposition: DispositionFinalize}
	e, addr := startEngine(t, cb, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, _, err := websocket.Dial(ctx, "ws://"+addr+"/websocket", nil)
	require.NoError(t, err)
	defer client.CloseNow()

	require.NoError(t, client.Write(ctx, websocket.MessageText, []byte("last")))
	require.Eventually(t, func() bool {
		e.IterateWebSockets()
		_, data, _ := cb.snapshot()
		return len(data) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, _, err = client.Read(ctx)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
}

func TestHTTPEngine_Lifecycle(t *testing.T) {
	e := NewHTTPEngine()
	assert.Nil(t, e.Addr())
	assert.ErrorIs(t, e.Destroy(), ErrNotStarted)

	require.NoError(t, e.SetOption(OptionListeningPort, "127.0.0.1:0"))
	require.NoError(t, e.Start(&recordingCallbacks{}))
	assert.ErrorIs(t, e.Start(&recordingCallbacks{}), ErrAlreadyStarted)
	assert.NotNil(t, e.Addr())

	require.NoError(t, e.Destroy())
	assert.NoError(t, e.Destroy())
}

func TestHTTPEngine_StartRejectsBadOptions(t *testing.T) {
	e := NewHTTPEngine()
	require.NoError(t, e.SetOption(OptionEnableKeepAlive, "perhaps"))
	assert.Error(t, e.Start(&recordingCallbacks{}))
}

func TestHTTPEngine_PollReturnsOnTimeout(t *testing.T) {
	e := NewHTTPEngine()
	start := time.Now()
	e.Poll(20 * time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)

	e.signal()
	start = time.Now()
	e.Poll(time.Second)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestHTTPEngine_SlowPeerDoesNotBlockWriter(t *testing.T) {
	cb := &recordingCallbacks{disposition: DispositionKeepOpen}
	e, addr := startEngine(t, cb, map[string]string{OptionWebSocketSendQueue: "1"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// The client never reads, so the server's socket buffers fill up.
	client, _, err := websocket.Dial(ctx, "ws://"+addr+"/websocket", nil)
	require.NoError(t, err)
	defer client.CloseNow()

	require.Eventually(t, func() bool {
		upgrades, _, _ := cb.snapshot()
		return len(upgrades) == 1
	}, 2*time.Second, 10*time.Millisecond)
	upgrades, _, _ := cb.snapshot()
	conn := upgrades[0]

	frame := make([]byte, 1<<20)
	start := time.Now()
	var sendErr error
	for i := 0; i < 256 && sendErr == nil; i++ {
		sendErr = conn.WriteFrame(OpcodeBinary, frame)
	}
	assert.ErrorIs(t, sendErr, ErrSlowPeer)
	assert.Less(t, time.Since(start), 2*time.Second, "writes must not wait on the peer")
	assert.ErrorIs(t, conn.WriteFrame(OpcodeText, []byte("late")), ErrConnClosed)

	require.Eventually(t, func() bool {
		e.IterateWebSockets()
		_, _, closed := cb.snapshot()
		return closed == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHTTPEngine_CloseFollowsQueuedFrames(t *testing.T) {
	cb := &recordingCallbacks{disposition: DispositionKeepOpen}
	_, addr := startEngine(t, cb, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, _, err := websocket.Dial(ctx, "ws://"+addr+"/websocket", nil)
	require.NoError(t, err)
	defer client.CloseNow()

	require.Eventually(t, func() bool {
		upgrades, _, _ := cb.snapshot()
		return len(upgrades) == 1
	}, 2*time.Second, 10*time.Millisecond)
	upgrades, _, _ := cb.snapshot()
	conn := upgrades[0]

	for _, m := range []string{"one", "two", "three"} {
		require.NoError(t, conn.WriteFrame(OpcodeText, []byte(m)))
	}
	require.NoError(t, conn.Close())
	assert.ErrorIs(t, conn.WriteFrame(OpcodeText, []byte("after")), ErrConnClosed)

	var got []string
	for {
		_, msg, err := client.Read(ctx)
		if err != nil {
			assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
			break
		}
		got = append(got, string(msg))
	}
	assert.Equal(t, []string{"one", "two", "three"}, got)
}
