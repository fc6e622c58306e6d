package session

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/getmockd/frontd/pkg/httpmsg"
	"github.com/getmockd/frontd/pkg/logging"
)

// Defaults for NewStore.
const (
	DefaultCookieName = "sessid"
	DefaultMaxAge     = time.Hour
)

// Stats is a point-in-time view of a Store.
type Stats struct {
	Active  int   `json:"active"`
	Sweeps  int64 `json:"sweeps"`
	Evicted int64 `json:"evicted"`
}

// Store maps session ids to sessions.
type Store struct {
	cookieName string
	maxAge     time.Duration
	clock      func() time.Time
	log        *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	sweeps   int64
	evicted  int64
}

// Option configures a Store.
type Option func(*Store)

// WithCookieName sets the cookie carrying the session id.
func WithCookieName(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.cookieName = name
		}
	}
}

// WithMaxAge sets how long a session may go unpinged before GC evicts it.
func WithMaxAge(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.maxAge = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.clock = now
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		cookieName: DefaultCookieName,
		maxAge:     DefaultMaxAge,
		clock:      time.Now,
		log:        logging.Nop(),
		sessions:   make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CookieName returns the name of the session cookie.
func (s *Store) CookieName() string { return s.cookieName }

// Get returns the session named by the request cookie and pings it. When
// the request has no cookie, or its session has been evicted, a new session
// is created and its cookie is set on resp. Calling Get again with the same
// resp returns the session it issued.
//
// The ping happens under the store lock, so a GarbageCollect running after
// Get returns cannot evict the session handed out.
func (s *Store) Get(req *httpmsg.Request, resp *httpmsg.Response) *Session {
	id := req.Cookie(s.cookieName, "")
	issued := s.issued(resp)

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok && id != "" {
		sess.Ping()
		return sess
	}
	if sess, ok := s.sessions[issued]; ok && issued != "" {
		sess.Ping()
		return sess
	}

	sess := newSession(uuid.NewString(), s.clock)
	s.sessions[sess.id] = sess
	if resp != nil {
		resp.SetCookie(s.cookieName, sess.id)
	}
	if id != "" {
		s.log.Debug("stale session replaced", "old", id, "new", sess.id)
	}
	return sess
}

// issued returns the session id already set on resp, or "".
func (s *Store) issued(resp *httpmsg.Response) string {
	if resp == nil {
		return ""
	}
	for _, line := range resp.Header().Values("Set-Cookie") {
		if c, err := http.ParseSetCookie(line); err == nil && c.Name == s.cookieName {
			return c.Value
		}
	}
	return ""
}

// Lookup returns the session with the given id.
func (s *Store) Lookup(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// GarbageCollect evicts sessions idle for longer than the max age and
// returns how many were removed.
func (s *Store) GarbageCollect() int {
	cutoff := s.clock().Add(-s.maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, sess := range s.sessions {
		if sess.idleSince(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	s.sweeps++
	s.evicted += int64(n)

	if n > 0 {
		s.log.Debug("sessions evicted", "count", n, "remaining", len(s.sessions))
	}
	return n
}

// Count returns the number of live sessions.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Stats returns current counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Active: len(s.sessions), Sweeps: s.sweeps, Evicted: s.evicted}
}
