package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, method, key string) int {
	req := httptest.NewRequest(method, "/", nil)
	if key != "" {
		req.Header.Set(APIKeyHeader, key)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Code
}

func TestWriteProtect(t *testing.T) {
	protected := WriteProtect(NewAuthConfigWithKeys([]string{"secret", "other"}))(okHandler())
	open := WriteProtect(NewAuthConfigWithKeys(nil))(okHandler())

	tests := []struct {
		name    string
		handler http.Handler
		method  string
		key     string
		want    int
	}{
		{"GET without key", protected, http.MethodGet, "", http.StatusOK},
		{"HEAD without key", protected, http.MethodHead, "", http.StatusOK},
		{"OPTIONS without key", protected, http.MethodOptions, "", http.StatusOK},
		{"POST without key", protected, http.MethodPost, "", http.StatusUnauthorized},
		{"PUT without key", protected, http.MethodPut, "", http.StatusUnauthorized},
		{"DELETE without key", protected, http.MethodDelete, "", http.StatusUnauthorized},
		{"POST with wrong key", protected, http.MethodPost, "wrong", http.StatusUnauthorized},
		{"POST with first key", protected, http.MethodPost, "secret", http.StatusOK},
		{"DELETE with second key", protected, http.MethodDelete, "other", http.StatusOK},
		{"POST with auth disabled", open, http.MethodPost, "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := serve(tt.handler, tt.method, tt.key); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRequireKey(t *testing.T) {
	h := RequireKey(NewAuthConfigWithKeys([]string{"secret"}))(okHandler())

	if got := serve(h, http.MethodGet, ""); got != http.StatusUnauthorized {
		t.Errorf("GET without key: status = %d, want %d", got, http.StatusUnauthorized)
	}
	if got := serve(h, http.MethodGet, "secret"); got != http.StatusOK {
		t.Errorf("GET with key: status = %d, want %d", got, http.StatusOK)
	}
}

func TestAuthConfig_IgnoresEmptyKeys(t *testing.T) {
	cfg := NewAuthConfigWithKeys([]string{"", ""})
	if cfg.Enabled() {
		t.Error("config with only empty keys should be disabled")
	}
	if cfg.Valid("") {
		t.Error("empty key should never be valid")
	}
}
