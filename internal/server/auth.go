package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/54b3r/civic-go/internal/logging"
)

// apiKeyHeader is accepted as an alternative to a Bearer token, for
// clients such as council kiosk scripts that cannot set Authorization.
const apiKeyHeader = "X-API-Key"

// authMiddleware requires CIVIC_API_KEY on protected routes, as either
// "Authorization: Bearer <key>" or "X-API-Key: <key>". An empty apiKey
// disables the check. Credentials are never logged.
func authMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	want := []byte(apiKey)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := credential(r)
		if token != "" && subtle.ConstantTimeCompare([]byte(token), want) == 1 {
			next.ServeHTTP(w, r)
			return
		}

		challenge := `Bearer realm="civic"`
		msg := "authorization required"
		if token != "" {
			challenge += ` error="invalid_token"`
			msg = "invalid token"
		}
		logging.FromContext(r.Context()).Warn("auth: rejected request",
			slog.String("path", r.URL.Path),
			slog.Bool("credential_present", token != ""),
		)
		w.Header().Set("WWW-Authenticate", challenge)
		writeJSONError(w, http.StatusUnauthorized, msg)
	})
}

// credential returns the Bearer token, else the X-API-Key value.
func credential(r *http.Request) string {
	if t := bearerToken(r); t != "" {
		return t
	}
	return strings.TrimSpace(r.Header.Get(apiKeyHeader))
}

// bearerToken extracts <token> from "Authorization: Bearer <token>". The
// scheme is case-insensitive.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
