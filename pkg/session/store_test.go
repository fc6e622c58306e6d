package session

import (
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/frontd/pkg/httpmsg"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func cookieValue(t *testing.T, resp *httpmsg.Response, name string) string {
	t.Helper()
	hr := http.Response{Header: resp.Header()}
	for _, c := range hr.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func requestWithCookie(name, value string) *httpmsg.Request {
	req := httpmsg.NewRequest(http.MethodGet, "/", nil)
	if value != "" {
		req.SetHeader("Cookie", name+"="+value)
	}
	return req
}

func TestStore_GetCreatesAndSetsCookie(t *testing.T) {
	t.Parallel()

	s := NewStore()
	resp := httpmsg.NewResponse()
	sess := s.Get(requestWithCookie(DefaultCookieName, ""), resp)

	require.NotNil(t, sess)
	assert.NotEmpty(t, sess.ID())
	assert.Equal(t, sess.ID(), cookieValue(t, resp, DefaultCookieName))
	assert.Equal(t, 1, s.Count())
}

func TestStore_GetReturnsExisting(t *testing.T) {
	t.Parallel()

	s := NewStore(WithCookieName("sid"))
	assert.Equal(t, "sid", s.CookieName())

	first := s.Get(requestWithCookie("sid", ""), httpmsg.NewResponse())
	first.Set("user", "ada")

	resp := httpmsg.NewResponse()
	again := s.Get(requestWithCookie("sid", first.ID()), resp)

	assert.Same(t, first, again)
	assert.Equal(t, "ada", again.Get("user", ""))
	assert.Empty(t, resp.Header().Get("Set-Cookie"))
	assert.Equal(t, 1, s.Count())
}

func TestStore_GetReusesSessionIssuedOnResponse(t *testing.T) {
	t.Parallel()

	s := NewStore()
	req := requestWithCookie(DefaultCookieName, "")
	resp := httpmsg.NewResponse()

	first := s.Get(req, resp)
	second := s.Get(req, resp)

	assert.Same(t, first, second)
	assert.Equal(t, 1, s.Count())
	assert.Len(t, resp.Header().Values("Set-Cookie"), 1)
}

func TestStore_StaleCookieGetsNewSession(t *testing.T) {
	t.Parallel()

	s := NewStore()
	resp := httpmsg.NewResponse()
	sess := s.Get(requestWithCookie(DefaultCookieName, "gone"), resp)

	assert.NotEqual(t, "gone", sess.ID())
	assert.Equal(t, sess.ID(), cookieValue(t, resp, DefaultCookieName))
	_, ok := s.Lookup("gone")
	assert.False(t, ok)
}

func TestStore_GarbageCollect(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := NewStore(WithMaxAge(time.Minute), WithClock(clock.Now))

	idle := s.Get(requestWithCookie(DefaultCookieName, ""), httpmsg.NewResponse())
	active := s.Get(requestWithCookie(DefaultCookieName, ""), httpmsg.NewResponse())

	clock.Advance(45 * time.Second)
	active.Ping()
	clock.Advance(30 * time.Second)

	assert.Equal(t, 1, s.GarbageCollect())

	_, ok := s.Lookup(idle.ID())
	assert.False(t, ok, "idle session should be evicted")
	_, ok = s.Lookup(active.ID())
	assert.True(t, ok, "pinged session should survive")

	stats := s.Stats()
	assert.Equal(t, Stats{Active: 1, Sweeps: 1, Evicted: 1}, stats)

	resp := httpmsg.NewResponse()
	replaced := s.Get(requestWithCookie(DefaultCookieName, idle.ID()), resp)
	assert.NotEqual(t, idle.ID(), replaced.ID())
}

func TestStore_GetPingsBeforeGarbageCollect(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := NewStore(WithMaxAge(time.Minute), WithClock(clock.Now))

	first := s.Get(requestWithCookie(DefaultCookieName, ""), httpmsg.NewResponse())
	first.Set("user", "ada")
	clock.Advance(2 * time.Minute)

	resp := httpmsg.NewResponse()
	sess := s.Get(requestWithCookie(DefaultCookieName, first.ID()), resp)
	require.Same(t, first, sess)
	assert.Equal(t, clock.Now(), sess.LastPing())

	// A sweep landing between Get and the handler must not evict it.
	assert.Equal(t, 0, s.GarbageCollect())
	stored, ok := s.Lookup(first.ID())
	require.True(t, ok)
	assert.Same(t, first, stored)
	assert.Equal(t, "ada", stored.Get("user", ""))
	assert.Empty(t, resp.Header().Get("Set-Cookie"))
}

func TestSession_Values(t *testing.T) {
	t.Parallel()

	s := newSession("id", time.Now)
	assert.Equal(t, "fallback", s.Get("k", "fallback"))
	assert.False(t, s.Has("k"))

	s.Set("k", "v")
	assert.True(t, s.Has("k"))
	assert.Equal(t, "v", s.Get("k", "fallback"))

	values := s.Values()
	values["k"] = "mutated"
	assert.Equal(t, "v", s.Get("k", ""))

	s.Unset("k")
	assert.False(t, s.Has("k"))
}

func TestStore_ConcurrentGet(t *testing.T) {
	t.Parallel()

	s := NewStore()
	var wg sync.WaitGroup
	ids := make(chan string, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess := s.Get(requestWithCookie(DefaultCookieName, ""), httpmsg.NewResponse())
			sess.Ping()
			ids <- sess.ID()
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		assert.False(t, strings.TrimSpace(id) == "")
		seen[id] = true
	}
	assert.Equal(t, 50, s.Count())
}
