package demo

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/getmockd/frontd/pkg/controller"
	"github.com/getmockd/frontd/pkg/httpmsg"
)

// StatsFunc returns a JSON-encodable snapshot of the server.
type StatsFunc func() any

// Status serves GET /status and, when a metrics handler is given, the
// Prometheus scrape endpoint.
type Status struct {
	*controller.RouterController
}

// NewStatus routes /status to stats and metricsPath to metrics. A nil
// metrics handler leaves the scrape endpoint out.
func NewStatus(stats StatsFunc, metricsPath string, metrics http.Handler, gcDivisor int) *Status {
	r := chi.NewRouter()
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		httpmsg.WriteJSON(w, http.StatusOK, stats())
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpmsg.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metrics != nil && metricsPath != "" {
		r.Method(http.MethodGet, metricsPath, metrics)
	}
	return &Status{RouterController: controller.NewRouterController(r, gcDivisor)}
}
