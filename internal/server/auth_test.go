package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		key       string
		headers   map[string]string
		wantCode  int
		challenge string
	}{
		{name: "no key configured", wantCode: http.StatusOK},
		{name: "missing credentials", key: "secret", wantCode: http.StatusUnauthorized, challenge: `realm="civic"`},
		{name: "bearer ok", key: "secret", headers: map[string]string{"Authorization": "Bearer secret"}, wantCode: http.StatusOK},
		{name: "lowercase scheme", key: "secret", headers: map[string]string{"Authorization": "bearer secret"}, wantCode: http.StatusOK},
		{name: "bearer wrong", key: "secret", headers: map[string]string{"Authorization": "Bearer nope"}, wantCode: http.StatusUnauthorized, challenge: "invalid_token"},
		{name: "basic scheme", key: "secret", headers: map[string]string{"Authorization": "Basic dXNlcjpwYXNz"}, wantCode: http.StatusUnauthorized},
		{name: "api key header ok", key: "secret", headers: map[string]string{apiKeyHeader: "secret"}, wantCode: http.StatusOK},
		{name: "api key header wrong", key: "secret", headers: map[string]string{apiKeyHeader: "nope"}, wantCode: http.StatusUnauthorized, challenge: "invalid_token"},
		{name: "bearer wins over api key", key: "secret", headers: map[string]string{"Authorization": "Bearer nope", apiKeyHeader: "secret"}, wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/api/query", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			authMiddleware(tt.key, okHandler).ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.challenge != "" && !strings.Contains(w.Header().Get("WWW-Authenticate"), tt.challenge) {
				t.Errorf("WWW-Authenticate = %q, want it to contain %q", w.Header().Get("WWW-Authenticate"), tt.challenge)
			}
		})
	}
}

func TestAuthMiddleware_JSONError(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	authMiddleware("secret", okHandler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/domains", nil))

	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}
	var body errorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "authorization required" {
		t.Errorf("error = %q, want authorization required", body.Error)
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	for header, want := range map[string]string{
		"Bearer mytoken":     "mytoken",
		"BEARER mytoken":     "mytoken",
		"Bearer  spaced ":    "spaced",
		"Basic dXNlcjpwYXNz": "",
		"":                   "",
		"Bearer":             "",
		"token only":         "",
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if got := bearerToken(req); got != want {
			t.Errorf("bearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}
