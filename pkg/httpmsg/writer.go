package httpmsg

import "net/http"

// Writer returns an http.ResponseWriter that fills r.
func (r *Response) Writer() http.ResponseWriter {
	return &responseWriter{resp: r}
}

type responseWriter struct {
	resp        *Response
	wroteHeader bool
}

func (w *responseWriter) Header() http.Header {
	return w.resp.header
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.resp.status = status
}

func (w *responseWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.resp.body.Write(p)
}

// Flush is a no-op; the body is written in one piece by the core.
func (w *responseWriter) Flush() {}
