package controller

import (
	"sync"

	"github.com/getmockd/frontd/pkg/httpmsg"
)

// DefaultGCDivisor is how many requests pass between session GC sweeps.
const DefaultGCDivisor = 100

// WebController serves HTML pages backed by sessions.
//
// Before each handler it sets the content type, touches the caller's session
// (creating it and its cookie on first visit) and, every gcDivisor requests,
// sweeps idle sessions out of the store.
//
// Embed *WebController, not WebController: the pre-process hook is bound to
// the pointer returned by NewWebController.
type WebController struct {
	Base

	contentType string
	gcDivisor   int

	mu      sync.Mutex
	counter int
}

// NewWebController returns a controller sweeping sessions every gcDivisor
// requests. Non-positive values use DefaultGCDivisor.
func NewWebController(gcDivisor int) *WebController {
	return newWebController(gcDivisor, httpmsg.ContentTypeHTML)
}

func newWebController(gcDivisor int, contentType string) *WebController {
	if gcDivisor <= 0 {
		gcDivisor = DefaultGCDivisor
	}
	c := &WebController{contentType: contentType, gcDivisor: gcDivisor}
	c.SetPreProcess(c.PreProcess)
	return c
}

// GCDivisor returns the sweep interval in requests.
func (c *WebController) GCDivisor() int { return c.gcDivisor }

// PreProcess prepares resp for a handler. It is installed automatically and
// only needs calling directly from custom Process implementations.
func (c *WebController) PreProcess(req *httpmsg.Request, resp *httpmsg.Response) {
	resp.SetContentType(c.contentType)

	sessions := c.Sessions()
	if sessions == nil {
		return
	}
	sessions.Get(req, resp)

	c.mu.Lock()
	c.counter++
	sweep := c.counter%c.gcDivisor == 0
	c.mu.Unlock()

	if sweep {
		if n := sessions.GarbageCollect(); n > 0 {
			c.Logger().Debug("session gc", "evicted", n)
		}
	}
}

// JSONController is a WebController answering with application/json.
type JSONController struct {
	*WebController
}

// NewJSONController returns a JSONController sweeping sessions every
// gcDivisor requests.
func NewJSONController(gcDivisor int) *JSONController {
	return &JSONController{WebController: newWebController(gcDivisor, httpmsg.ContentTypeJSON)}
}
