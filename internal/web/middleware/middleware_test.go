package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JonMunkholm/esgmap/internal/logging"
)

func echoRemoteAddr() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.RemoteAddr))
	})
}

// ============================================================================
// TrustedRealIP Tests
// ============================================================================

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		remote  string
		headers map[string]string
		want    string
	}{
		{
			name:    "untrusted proxy ignored",
			trusted: []string{"10.0.0.0/8"},
			remote:  "192.168.1.5:4000",
			headers: map[string]string{"X-Real-IP": "1.2.3.4"},
			want:    "192.168.1.5:4000",
		},
		{
			name:    "trusted proxy real ip",
			trusted: []string{"10.0.0.0/8"},
			remote:  "10.1.2.3:4000",
			headers: map[string]string{"X-Real-IP": "1.2.3.4"},
			want:    "1.2.3.4",
		},
		{
			name:    "trusted proxy forwarded for takes first hop",
			trusted: []string{"10.0.0.0/8"},
			remote:  "10.1.2.3:4000",
			headers: map[string]string{"X-Forwarded-For": "5.6.7.8, 10.1.2.3"},
			want:    "5.6.7.8",
		},
		{
			name:    "bare address trusted",
			trusted: []string{"127.0.0.1"},
			remote:  "127.0.0.1:9999",
			headers: map[string]string{"X-Real-IP": "9.9.9.9"},
			want:    "9.9.9.9",
		},
		{
			name:    "invalid header ignored",
			trusted: []string{"10.0.0.0/8"},
			remote:  "10.1.2.3:4000",
			headers: map[string]string{"X-Real-IP": "not-an-ip"},
			want:    "10.1.2.3:4000",
		},
		{
			name:    "invalid cidr skipped",
			trusted: []string{"bogus", ""},
			remote:  "10.1.2.3:4000",
			headers: map[string]string{"X-Real-IP": "1.2.3.4"},
			want:    "10.1.2.3:4000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := TrustedRealIP(tt.trusted)(echoRemoteAddr())

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if got := rec.Body.String(); got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}

// ============================================================================
// APIKeyAuth Tests
// ============================================================================

func TestAPIKeyAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name       string
		required   bool
		keys       []string
		key        string
		wantStatus int
		wantCode   string
	}{
		{name: "disabled", required: false, wantStatus: http.StatusNoContent},
		{name: "missing key", required: true, keys: []string{"k1"}, wantStatus: http.StatusUnauthorized, wantCode: "AUTH_MISSING_KEY"},
		{name: "wrong key", required: true, keys: []string{"k1"}, key: "nope", wantStatus: http.StatusForbidden, wantCode: "AUTH_INVALID_KEY"},
		{name: "second key valid", required: true, keys: []string{"k1", "k2"}, key: "k2", wantStatus: http.StatusNoContent},
		{name: "no keys configured", required: true, key: "k1", wantStatus: http.StatusForbidden, wantCode: "AUTH_INVALID_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := APIKeyAuth(tt.required, tt.keys)(ok)

			req := httptest.NewRequest(http.MethodGet, "/api/mapping", nil)
			if tt.key != "" {
				req.Header.Set(APIKeyHeader, tt.key)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantCode == "" {
				return
			}

			var body authError
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

// ============================================================================
// Logger Tests
// ============================================================================

func TestLogger_RecordsStatusAndBytes(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	logging.SetupWriter(&buf, "debug", "json")
	t.Cleanup(func() { slog.SetDefault(prev) })

	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reconcile", nil))

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, buf.String())
	}

	if entry["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", entry["level"])
	}
	if entry["status"] != float64(http.StatusTeapot) {
		t.Errorf("status = %v, want %d", entry["status"], http.StatusTeapot)
	}
	if entry["bytes"] != float64(5) {
		t.Errorf("bytes = %v, want 5", entry["bytes"])
	}
	if !strings.HasSuffix(entry["path"].(string), "/reconcile") {
		t.Errorf("path = %v", entry["path"])
	}
}
