package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/helixml/semandoc"
	"github.com/helixml/semandoc/infrastructure/api"
	"github.com/helixml/semandoc/internal/testembed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, opts ...semandoc.Option) *semandoc.Client {
	t.Helper()
	base := []semandoc.Option{
		semandoc.WithDataDir(t.TempDir()),
		semandoc.WithEmbeddingProvider(testembed.New(4)),
		semandoc.WithEmbeddingCache(false),
		semandoc.WithSaveInterval(0),
	}
	client, err := semandoc.New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func serve(h http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAPIServer_ReadEndpointsOpen_WriteEndpointsProtected(t *testing.T) {
	client := newTestClient(t, semandoc.WithAPIKeys("test-secret-key"))
	handler := api.NewAPIServer(client).Handler()
	withKey := map[string]string{"X-API-KEY": "test-secret-key"}

	t.Run("GET /api/v1/documents is open", func(t *testing.T) {
		w := serve(handler, http.MethodGet, "/api/v1/documents", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("POST /api/v1/documents without key returns 401", func(t *testing.T) {
		w := serve(handler, http.MethodPost, "/api/v1/documents", `{"content":"a note"}`, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())
	})

	t.Run("POST /api/v1/documents with a wrong key returns 401", func(t *testing.T) {
		w := serve(handler, http.MethodPost, "/api/v1/documents", `{"content":"a note"}`, map[string]string{"X-API-KEY": "nope"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("POST /api/v1/documents with a valid key creates", func(t *testing.T) {
		w := serve(handler, http.MethodPost, "/api/v1/documents", `{"content":"keys rotate every quarter"}`, withKey)
		assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	})

	t.Run("DELETE /api/v1/documents/x without key returns 401", func(t *testing.T) {
		w := serve(handler, http.MethodDelete, "/api/v1/documents/x", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("GET /api/v1/documents/webhook requires a key", func(t *testing.T) {
		path := "/api/v1/documents/webhook?content=" + url.QueryEscape("badges are renewed yearly")
		w := serve(handler, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())
		w = serve(handler, http.MethodGet, path, "", map[string]string{"X-API-KEY": "nope"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, 1, client.Documents.Count())

		w = serve(handler, http.MethodGet, path, "", withKey)
		assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, 2, client.Documents.Count())
	})

	t.Run("POST /api/v1/documents/search is open", func(t *testing.T) {
		w := serve(handler, http.MethodPost, "/api/v1/documents/search", `{"query":"keys rotate"}`, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var body struct {
			Data []json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Len(t, body.Data, 1)
	})

	t.Run("POST /api/v1/chat is open", func(t *testing.T) {
		w := serve(handler, http.MethodPost, "/api/v1/chat", `{"query":"when do keys rotate"}`, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("POST /api/v1/documents/save requires a key", func(t *testing.T) {
		w := serve(handler, http.MethodPost, "/api/v1/documents/save", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		w = serve(handler, http.MethodPost, "/api/v1/documents/save", "", withKey)
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})
}

func TestAPIServer_NoKeysLeavesWritesOpen(t *testing.T) {
	handler := api.NewAPIServer(newTestClient(t)).Handler()

	w := serve(handler, http.MethodPost, "/api/v1/documents", `{"content":"the gate code is posted at reception"}`, nil)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestAPIServer_HealthAndInfo(t *testing.T) {
	client := newTestClient(t)
	handler := api.NewAPIServer(client, api.WithVersion("1.2.3")).Handler()

	for _, path := range []string{"/health", "/healthz"} {
		w := serve(handler, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "healthy")
	}

	w := serve(handler, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var info struct {
		Meta map[string]any `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "1.2.3", info.Meta["version"])
	assert.EqualValues(t, 0, info.Meta["count"])
	assert.Equal(t, false, info.Meta["chat"])

	require.NoError(t, client.Close())
	w = serve(handler, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAPIServer_CORS(t *testing.T) {
	handler := api.NewAPIServer(newTestClient(t), api.WithCORSOrigins("https://app.example.com")).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/documents", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestAPIServer_MCPMounted(t *testing.T) {
	handler := api.NewAPIServer(newTestClient(t)).Handler()

	body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"test","version":"0.0.1"}}}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "semandoc")
}
