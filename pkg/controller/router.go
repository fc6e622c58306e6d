package controller

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/getmockd/frontd/pkg/httpmsg"
)

// RouterController serves requests through a chi router. It claims exactly
// the method/path pairs the router has a route for, and keeps the session
// handling of WebController.
type RouterController struct {
	*WebController
	mux *chi.Mux
}

// NewRouterController wraps mux. A nil mux starts an empty router that can
// be filled through Router.
func NewRouterController(mux *chi.Mux, gcDivisor int) *RouterController {
	if mux == nil {
		mux = chi.NewRouter()
	}
	return &RouterController{
		WebController: newWebController(gcDivisor, httpmsg.ContentTypeJSON),
		mux:           mux,
	}
}

// Router returns the underlying chi router.
func (c *RouterController) Router() chi.Router { return c.mux }

// Handles reports whether the router has a route for method and url. The
// method is matched case-insensitively, as in Base.
func (c *RouterController) Handles(method, url string) bool {
	return c.mux.Match(chi.NewRouteContext(), strings.ToUpper(method), url)
}

// Process runs the router and captures its output. Handlers may overwrite
// the content type set during pre-processing.
func (c *RouterController) Process(req *httpmsg.Request) *httpmsg.Response {
	if !c.Handles(req.Method(), req.URL()) {
		return nil
	}

	resp := httpmsg.NewResponse()
	c.PreProcess(req, resp)
	hr := req.HTTPRequest()
	hr.Method = strings.ToUpper(hr.Method)
	c.mux.ServeHTTP(resp.Writer(), hr)
	return resp
}

// Mount attaches an http.Handler under pattern, as chi.Mux.Mount does.
func (c *RouterController) Mount(pattern string, h http.Handler) {
	c.mux.Mount(pattern, h)
}
