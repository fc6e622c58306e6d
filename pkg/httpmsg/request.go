package httpmsg

import (
	"bytes"
	"context"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// Source is anything that can describe an inbound request. transport.Conn
// satisfies it.
type Source interface {
	Method() string
	URL() string
	Query() string
	Header() http.Header
	Body() []byte
	RemoteAddr() string
}

// Request is an inbound HTTP request.
type Request struct {
	method     string
	path       string
	rawQuery   string
	header     http.Header
	body       []byte
	remoteAddr string
	ctx        context.Context

	parseOnce sync.Once
	query     url.Values
	form      url.Values
}

// NewRequest creates a request for target, which may include a query string.
func NewRequest(method, target string, body []byte) *Request {
	r := &Request{
		method: method,
		path:   target,
		header: make(http.Header),
		body:   body,
		ctx:    context.Background(),
	}
	if u, err := url.Parse(target); err == nil {
		r.path = u.Path
		r.rawQuery = u.RawQuery
	}
	return r
}

// FromSource snapshots a request from an engine connection.
func FromSource(src Source) *Request {
	h := src.Header()
	if h == nil {
		h = make(http.Header)
	}
	return &Request{
		method:     src.Method(),
		path:       src.URL(),
		rawQuery:   src.Query(),
		header:     h,
		body:       src.Body(),
		remoteAddr: src.RemoteAddr(),
		ctx:        context.Background(),
	}
}

func (r *Request) Method() string      { return r.method }
func (r *Request) URL() string         { return r.path }
func (r *Request) RawQuery() string    { return r.rawQuery }
func (r *Request) Header() http.Header { return r.header }
func (r *Request) Body() []byte        { return r.body }
func (r *Request) Data() string        { return string(r.body) }
func (r *Request) RemoteAddr() string  { return r.remoteAddr }

// Context returns the request context, never nil.
func (r *Request) Context() context.Context { return r.ctx }

// WithContext returns a shallow copy of r carrying ctx.
func (r *Request) WithContext(ctx context.Context) *Request {
	if ctx == nil {
		panic("httpmsg: nil context")
	}
	return &Request{
		method:     r.method,
		path:       r.path,
		rawQuery:   r.rawQuery,
		header:     r.header,
		body:       r.body,
		remoteAddr: r.remoteAddr,
		ctx:        ctx,
	}
}

// SetHeader sets a request header and returns r.
func (r *Request) SetHeader(key, value string) *Request {
	r.header.Set(key, value)
	return r
}

// Query returns the parsed query string.
func (r *Request) Query() url.Values {
	r.parse()
	return r.query
}

// Get returns a query or url-encoded form variable, or fallback when the
// variable is absent. The query string wins over the body.
func (r *Request) Get(key, fallback string) string {
	r.parse()
	if vs, ok := r.query[key]; ok && len(vs) > 0 {
		return vs[0]
	}
	if vs, ok := r.form[key]; ok && len(vs) > 0 {
		return vs[0]
	}
	return fallback
}

// Has reports whether a query or form variable is present.
func (r *Request) Has(key string) bool {
	r.parse()
	return r.query.Has(key) || r.form.Has(key)
}

// Cookie returns the value of the named cookie, or fallback.
func (r *Request) Cookie(name, fallback string) string {
	hr := http.Request{Header: r.header}
	c, err := hr.Cookie(name)
	if err != nil {
		return fallback
	}
	return c.Value
}

// HTTPRequest converts r to a net/http request.
func (r *Request) HTTPRequest() *http.Request {
	target := r.path
	if r.rawQuery != "" {
		target += "?" + r.rawQuery
	}
	hr, err := http.NewRequestWithContext(r.ctx, r.method, target, bytes.NewReader(r.body))
	if err != nil {
		hr, _ = http.NewRequestWithContext(r.ctx, r.method, "/", bytes.NewReader(r.body))
		hr.URL.Path = r.path
	}
	hr.Header = r.header.Clone()
	hr.RemoteAddr = r.remoteAddr
	hr.RequestURI = target
	return hr
}

func (r *Request) parse() {
	r.parseOnce.Do(func() {
		r.query, _ = url.ParseQuery(r.rawQuery)
		if r.query == nil {
			r.query = url.Values{}
		}
		r.form = url.Values{}
		ct, _, _ := mime.ParseMediaType(r.header.Get("Content-Type"))
		if strings.EqualFold(ct, "application/x-www-form-urlencoded") {
			if form, err := url.ParseQuery(string(r.body)); err == nil {
				r.form = form
			}
		}
	})
}
