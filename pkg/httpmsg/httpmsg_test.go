package httpmsg

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct{}

func (fakeSource) Method() string { return http.MethodPost }
func (fakeSource) URL() string    { return "/submit" }
func (fakeSource) Query() string  { return "a=1&b=2" }
func (fakeSource) Header() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/x-www-form-urlencoded")
	h.Set("Cookie", "sessid=abc; theme=dark")
	return h
}
func (fakeSource) Body() []byte       { return []byte("a=body&c=3") }
func (fakeSource) RemoteAddr() string { return "10.0.0.1:1234" }

func TestRequest_FromSource(t *testing.T) {
	t.Parallel()

	r := FromSource(fakeSource{})

	assert.Equal(t, http.MethodPost, r.Method())
	assert.Equal(t, "/submit", r.URL())
	assert.Equal(t, "a=1&b=2", r.RawQuery())
	assert.Equal(t, "10.0.0.1:1234", r.RemoteAddr())
	assert.Equal(t, "a=body&c=3", r.Data())
	assert.NotNil(t, r.Context())

	t.Run("query wins over form", func(t *testing.T) {
		assert.Equal(t, "1", r.Get("a", "x"))
		assert.Equal(t, "3", r.Get("c", "x"))
		assert.Equal(t, "x", r.Get("missing", "x"))
		assert.True(t, r.Has("b"))
		assert.False(t, r.Has("missing"))
	})

	t.Run("cookies", func(t *testing.T) {
		assert.Equal(t, "abc", r.Cookie("sessid", ""))
		assert.Equal(t, "dark", r.Cookie("theme", ""))
		assert.Equal(t, "none", r.Cookie("absent", "none"))
	})
}

func TestRequest_NewRequestSplitsQuery(t *testing.T) {
	t.Parallel()

	r := NewRequest(http.MethodGet, "/hello?name=world", nil)
	assert.Equal(t, "/hello", r.URL())
	assert.Equal(t, "world", r.Query().Get("name"))
	assert.Equal(t, "world", r.Get("name", ""))
}

func TestRequest_FormIgnoredForOtherContentTypes(t *testing.T) {
	t.Parallel()

	r := NewRequest(http.MethodPost, "/", []byte("a=1"))
	r.SetHeader("Content-Type", "application/json")
	assert.Equal(t, "", r.Get("a", ""))
}

func TestRequest_HTTPRequest(t *testing.T) {
	t.Parallel()

	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")
	r := FromSource(fakeSource{}).WithContext(ctx)

	hr := r.HTTPRequest()
	assert.Equal(t, http.MethodPost, hr.Method)
	assert.Equal(t, "/submit", hr.URL.Path)
	assert.Equal(t, "2", hr.URL.Query().Get("b"))
	assert.Equal(t, "10.0.0.1:1234", hr.RemoteAddr)
	assert.Equal(t, "v", hr.Context().Value(key{}))

	body, err := io.ReadAll(hr.Body)
	require.NoError(t, err)
	assert.Equal(t, "a=body&c=3", string(body))
}

func TestResponse(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		r := NewResponse()
		assert.Equal(t, http.StatusOK, r.Status())
		assert.Empty(t, r.Body())
		assert.False(t, r.HasHeader("Content-Type"))
	})

	t.Run("write and headers", func(t *testing.T) {
		r := NewResponse()
		r.SetStatus(http.StatusAccepted)
		r.SetContentType(ContentTypeHTML)
		_, _ = r.WriteString("<p>")
		_, _ = r.Write([]byte("hi</p>"))

		assert.Equal(t, http.StatusAccepted, r.Status())
		assert.Equal(t, ContentTypeHTML, r.ContentType())
		assert.Equal(t, "<p>hi</p>", string(r.Body()))
		assert.Equal(t, 9, r.Len())

		r.Reset()
		assert.Zero(t, r.Len())
	})

	t.Run("cookie", func(t *testing.T) {
		r := NewResponse()
		r.SetCookie("sessid", "abc")
		cookie := r.Header().Get("Set-Cookie")
		assert.Contains(t, cookie, "sessid=abc")
		assert.Contains(t, cookie, "Path=/")
		assert.Contains(t, cookie, "HttpOnly")
	})

	t.Run("json", func(t *testing.T) {
		r := NewJSONResponse(http.StatusCreated, map[string]int{"n": 1})
		assert.Equal(t, http.StatusCreated, r.Status())
		assert.Equal(t, ContentTypeJSON, r.ContentType())
		assert.JSONEq(t, `{"n":1}`, string(r.Body()))
	})

	t.Run("error", func(t *testing.T) {
		r := NewErrorResponse(http.StatusInternalServerError, "internal_error", "boom")
		var body ErrorBody
		require.NoError(t, json.Unmarshal(r.Body(), &body))
		assert.Equal(t, "internal_error", body.Error)
		assert.Equal(t, "boom", body.Message)
	})
}

func TestResponse_Writer(t *testing.T) {
	t.Parallel()

	r := NewResponse()
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusTeapot, "teapot", "short and stout")
		w.WriteHeader(http.StatusOK)
	})
	h.ServeHTTP(r.Writer(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, r.Status())
	assert.Equal(t, ContentTypeJSON, r.ContentType())
	assert.JSONEq(t, `{"error":"teapot","message":"short and stout"}`, string(r.Body()))
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusNoContent, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, map[string]string{"foo": "bar"})
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"foo":"bar"}`, rec.Body.String())
}
