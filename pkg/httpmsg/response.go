package httpmsg

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// Common content types.
const (
	ContentTypeHTML = "text/html"
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain; charset=utf-8"
)

// Response is an outbound HTTP response built by a controller.
type Response struct {
	status int
	header http.Header
	body   bytes.Buffer
}

// NewResponse returns an empty 200 response.
func NewResponse() *Response {
	return &Response{status: http.StatusOK, header: make(http.Header)}
}

// NewJSONResponse returns a response carrying v encoded as JSON.
func NewJSONResponse(status int, v any) *Response {
	r := NewResponse()
	r.SetStatus(status)
	_ = r.WriteJSON(v)
	return r
}

// NewErrorResponse returns a JSON error response in the shape WriteError uses.
func NewErrorResponse(status int, code, message string) *Response {
	return NewJSONResponse(status, ErrorBody{Error: code, Message: message})
}

func (r *Response) Status() int          { return r.status }
func (r *Response) SetStatus(status int) { r.status = status }
func (r *Response) Header() http.Header  { return r.header }
func (r *Response) Body() []byte         { return r.body.Bytes() }
func (r *Response) Len() int             { return r.body.Len() }

// SetHeader replaces a header value.
func (r *Response) SetHeader(key, value string) {
	r.header.Set(key, value)
}

// HasHeader reports whether key has been set.
func (r *Response) HasHeader(key string) bool {
	return r.header.Get(key) != ""
}

// SetContentType sets the Content-Type header.
func (r *Response) SetContentType(ct string) {
	r.header.Set("Content-Type", ct)
}

// ContentType returns the Content-Type header.
func (r *Response) ContentType() string {
	return r.header.Get("Content-Type")
}

// SetCookie adds a session-style cookie scoped to the whole site.
func (r *Response) SetCookie(name, value string) {
	c := &http.Cookie{Name: name, Value: value, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode}
	r.header.Add("Set-Cookie", c.String())
}

// Write appends to the body.
func (r *Response) Write(p []byte) (int, error) {
	return r.body.Write(p)
}

// WriteString appends s to the body.
func (r *Response) WriteString(s string) (int, error) {
	return r.body.WriteString(s)
}

// WriteJSON replaces the body with v encoded as JSON.
func (r *Response) WriteJSON(v any) error {
	r.body.Reset()
	r.SetContentType(ContentTypeJSON)
	if v == nil {
		return nil
	}
	return json.NewEncoder(&r.body).Encode(v)
}

// Reset clears the body, keeping status and headers.
func (r *Response) Reset() {
	r.body.Reset()
}
