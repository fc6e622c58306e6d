package engine

import (
	"time"
)

// Stats is a snapshot of the server's activity.
type Stats struct {
	State             string        `json:"state"`
	Requests          int64         `json:"requests"`
	InFlight          int           `json:"inFlight"`
	Uptime            time.Duration `json:"uptime"`
	RequestsPerSecond float64       `json:"requestsPerSecond"`
	WebSockets        int           `json:"websockets"`
	Sessions          int           `json:"sessions"`
	Controllers       int           `json:"controllers"`
}

// Stats returns the current statistics. Uptime and rate cover the current
// run and are zero while the server is not running.
func (s *Server) Stats() Stats {
	state := s.State()

	s.mu.Lock()
	st := Stats{
		State:    state.String(),
		Requests: s.requests,
		InFlight: len(s.current),
	}
	if state == StateRunning && !s.startTime.IsZero() {
		st.Uptime = time.Since(s.startTime)
	}
	s.mu.Unlock()

	if secs := st.Uptime.Seconds(); secs > 0 {
		st.RequestsPerSecond = float64(st.Requests) / secs
	}
	st.WebSockets = s.sockets.Count()
	st.Sessions = s.sessions.Count()
	st.Controllers = len(s.Controllers())
	return st
}

// LogStats writes the current statistics at info level.
func (s *Server) LogStats() {
	st := s.Stats()
	s.log.Info("server stats",
		"state", st.State,
		"requests", st.Requests,
		"inFlight", st.InFlight,
		"uptime", st.Uptime.Round(time.Second),
		"requestsPerSecond", st.RequestsPerSecond,
		"websockets", st.WebSockets,
		"sessions", st.Sessions,
		"controllers", st.Controllers,
	)
}
