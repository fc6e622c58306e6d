package demo

import (
	"net/http"
	"strconv"

	"github.com/getmockd/frontd/pkg/controller"
	"github.com/getmockd/frontd/pkg/httpmsg"
)

// Hello answers GET /hello with a greeting and the caller's visit count.
type Hello struct {
	*controller.JSONController
}

// HelloResponse is the body of GET /hello.
type HelloResponse struct {
	Message string `json:"message"`
	Visits  int    `json:"visits"`
	Session string `json:"session,omitempty"`
}

// NewHello creates the controller.
func NewHello(gcDivisor int) *Hello {
	return &Hello{JSONController: controller.NewJSONController(gcDivisor)}
}

func (h *Hello) Setup() {
	h.AddRoute(http.MethodGet, "/hello", h.hello)
}

func (h *Hello) hello(req *httpmsg.Request, resp *httpmsg.Response) {
	out := HelloResponse{Message: "hello " + req.Get("name", "world")}

	if store := h.Sessions(); store != nil {
		sess := store.Get(req, resp)
		visits, _ := strconv.Atoi(sess.Get("visits", "0"))
		visits++
		sess.Set("visits", strconv.Itoa(visits))
		out.Visits = visits
		out.Session = sess.ID()
	}

	if err := resp.WriteJSON(out); err != nil {
		resp.Reset()
		resp.SetStatus(http.StatusInternalServerError)
	}
}
