package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/esgmap/internal/core"
)

// WithRequestMetadata adds the client IP and User-Agent to ctx for the run record.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithIPAddress(ctx, clientIP(r))
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}

// clientIP returns the host part of RemoteAddr, already rewritten by
// TrustedRealIP when the request came through a trusted proxy.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
