package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
)

// APIKeyHeader carries the client's API key.
const APIKeyHeader = "X-API-Key"

type authError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// APIKeyAuth rejects requests whose X-API-Key is not one of keys. When required
// is false every request passes. When required is true and keys is empty every
// request is rejected.
func APIKeyAuth(required bool, keys []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !required {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(APIKeyHeader)
			switch {
			case key == "":
				slog.Warn("auth: missing API key", "path", r.URL.Path, "method", r.Method, "remote_addr", r.RemoteAddr)
				deny(w, http.StatusUnauthorized, authError{Error: "missing API key", Code: "AUTH_MISSING_KEY"})
			case !isValidAPIKey(key, keys):
				slog.Warn("auth: invalid API key", "path", r.URL.Path, "method", r.Method, "remote_addr", r.RemoteAddr)
				deny(w, http.StatusForbidden, authError{Error: "invalid API key", Code: "AUTH_INVALID_KEY"})
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func deny(w http.ResponseWriter, status int, body authError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// isValidAPIKey compares key against every configured key in constant time, so
// timing does not reveal which key (if any) matched.
func isValidAPIKey(key string, validKeys []string) bool {
	valid := 0
	for _, validKey := range validKeys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(validKey))
	}
	return valid == 1
}
