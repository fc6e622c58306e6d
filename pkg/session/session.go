// Package session keeps per-client values keyed by a cookie.
//
// Sessions live in memory. They are never expired on a timer; a Store only
// evicts idle sessions when GarbageCollect is called, which controllers do
// every few requests.
package session

import (
	"sync"
	"time"
)

// Session is one client's key/value state.
type Session struct {
	id string

	mu       sync.RWMutex
	values   map[string]string
	lastPing time.Time
	clock    func() time.Time
}

func newSession(id string, clock func() time.Time) *Session {
	return &Session{
		id:       id,
		values:   make(map[string]string),
		lastPing: clock(),
		clock:    clock,
	}
}

// ID returns the session id carried in the cookie.
func (s *Session) ID() string { return s.id }

// Get returns the value for key, or fallback.
func (s *Session) Get(key, fallback string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[key]; ok {
		return v
	}
	return fallback
}

func (s *Session) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *Session) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[key]
	return ok
}

func (s *Session) Unset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Values returns a copy of all values.
func (s *Session) Values() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Ping marks the session as used now.
func (s *Session) Ping() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPing = s.clock()
}

func (s *Session) LastPing() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPing
}

func (s *Session) idleSince(cutoff time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPing.Before(cutoff)
}
