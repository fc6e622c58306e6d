package engine

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/getmockd/frontd/pkg/controller"
	"github.com/getmockd/frontd/pkg/httpmsg"
	"github.com/getmockd/frontd/pkg/metrics"
	"github.com/getmockd/frontd/pkg/transport"
)

// Handles reports whether the server wants a request: the upgrade path
// always, anything else when a controller claims it.
func (s *Server) Handles(method, url string) bool {
	if url == s.cfg.UpgradePath {
		return true
	}
	return s.claim(method, url) != nil
}

// ShouldHandle implements transport.Callbacks.
func (s *Server) ShouldHandle(method, url string) bool {
	return s.Handles(method, url)
}

// OnRequest implements transport.Callbacks. The request is visible through
// IsInFlight from the moment it is built until routing returns.
func (s *Server) OnRequest(c transport.Conn) bool {
	start := time.Now()
	req := httpmsg.FromSource(c)

	s.track(c, req)
	s.metrics.RequestStarted()
	resp := func() *httpmsg.Response {
		defer s.metrics.RequestFinished()
		defer s.untrack(c)
		return s.Route(req)
	}()

	if resp == nil {
		s.metrics.ObserveRequest(req.Method(), 0, time.Since(start))
		return false
	}

	if err := c.WriteResponse(resp.Status(), resp.Header(), resp.Body()); err != nil {
		s.metrics.WriteError()
		s.log.Warn("failed to write response",
			"method", req.Method(),
			"url", req.URL(),
			"status", resp.Status(),
			"error", err,
		)
	}
	s.metrics.ObserveRequest(req.Method(), resp.Status(), time.Since(start))
	return true
}

// Route hands req to the first controller that claims it. The claiming
// controller's answer is final, even when it is nil. A panicking controller
// produces a 500 response.
func (s *Server) Route(req *httpmsg.Request) (resp *httpmsg.Response) {
	s.mu.Lock()
	s.requests++
	s.mu.Unlock()

	ctx, span := s.tracer.Start(req.Context(), "frontd.route "+req.Method(),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.method", req.Method()),
			attribute.String("http.target", req.URL()),
		),
	)
	defer span.End()
	req = req.WithContext(ctx)

	c := s.claim(req.Method(), req.URL())
	if c == nil {
		span.SetAttributes(attribute.String("frontd.status", metrics.StatusUnmatched))
		return nil
	}
	span.SetAttributes(attribute.String("frontd.controller", fmt.Sprintf("%T", c)))

	defer func() {
		if r := recover(); r != nil {
			s.metrics.ControllerPanic()
			s.log.Error("controller panicked",
				"controller", fmt.Sprintf("%T", c),
				"method", req.Method(),
				"url", req.URL(),
				"panic", r,
				"stack", string(debug.Stack()),
			)
			span.SetStatus(codes.Error, fmt.Sprint(r))
			resp = httpmsg.NewErrorResponse(http.StatusInternalServerError, "internal_error", "request handler failed")
		}
	}()

	resp = c.Process(req)
	if resp != nil {
		span.SetAttributes(attribute.Int("http.status_code", resp.Status()))
		if resp.Status() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(resp.Status()))
		}
	}
	return resp
}

func (s *Server) claim(method, url string) controller.Controller {
	for _, c := range s.Controllers() {
		if c.Handles(method, url) {
			return c
		}
	}
	return nil
}

func (s *Server) track(c transport.Conn, req *httpmsg.Request) {
	s.mu.Lock()
	s.current[c] = req
	s.mu.Unlock()
}

func (s *Server) untrack(c transport.Conn) {
	s.mu.Lock()
	delete(s.current, c)
	s.mu.Unlock()
}

// InFlight returns the number of requests being routed.
func (s *Server) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.current)
}

// IsInFlight reports whether a request on c is being routed.
func (s *Server) IsInFlight(c transport.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.current[c]
	return ok
}

// CurrentRequest returns the request being routed on c, or nil.
func (s *Server) CurrentRequest(c transport.Conn) *httpmsg.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current[c]
}
