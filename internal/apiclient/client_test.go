package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsBadBaseURLs(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
	}{
		{"no scheme", "localhost:5000"},
		{"ftp scheme", "ftp://localhost:5000"},
		{"missing host", "http://"},
		{"unparseable", "http://[::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.baseURL)
			assert.Error(t, err)
		})
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c, err := New("http://localhost:5000/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5000", c.BaseURL())
}

func TestDo_SendsJSONHeadersAndBody(t *testing.T) {
	var (
		gotMethod      string
		gotPath        string
		gotContentType string
		gotRequestID   string
		gotUA          string
		gotBody        map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotRequestID = r.Header.Get("X-Request-ID")
		gotUA = r.Header.Get("User-Agent")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sessionId":"abc"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, WithRequestID("run-1"), WithUserAgent("apicheck/test"))
	require.NoError(t, err)

	resp, err := c.Post(context.Background(), "/api/chat/sessions", map[string]any{"requirementId": "req-1"})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/chat/sessions", gotPath)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "run-1", gotRequestID)
	assert.Equal(t, "apicheck/test", gotUA)
	assert.Equal(t, "req-1", gotBody["requirementId"])

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	obj, err := resp.Object()
	require.NoError(t, err)
	assert.Equal(t, "abc", obj["sessionId"])
}

func TestDo_NonOKStatusIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Requirement not found"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	resp, err := c.Get(context.Background(), "api/requirements/missing")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDo_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url, WithTimeout(2*time.Second))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/api/health")
	assert.Error(t, err)
}

func TestResponse_Decoders(t *testing.T) {
	list := &Response{Body: []byte(`[{"id":1}]`)}
	items, err := list.List()
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = list.Object()
	assert.ErrorIs(t, err, ErrNotObject)

	obj := &Response{Body: []byte(`{"status":"ok"}`)}
	_, err = obj.List()
	assert.ErrorIs(t, err, ErrNotList)

	bad := &Response{Body: []byte(`<html>`)}
	_, err = bad.JSON()
	assert.Error(t, err)
}

func TestPathEscape(t *testing.T) {
	assert.Equal(t, "a%2Fb", PathEscape("a/b"))
	assert.Equal(t, "REQ-1", PathEscape("REQ-1"))
}
