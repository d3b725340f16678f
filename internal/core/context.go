package core

import "context"

type contextKey string

const (
	ctxKeyIPAddress contextKey = "run_ip"
	ctxKeyUserAgent contextKey = "run_ua"
)

// ContextWithIPAddress attaches the client IP recorded on the run's audit entry.
func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyIPAddress, ip)
}

// ContextWithUserAgent attaches the client User-Agent recorded on the run's audit entry.
func ContextWithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, ctxKeyUserAgent, ua)
}

// IPAddressFromContext returns the client IP, or "".
func IPAddressFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyIPAddress).(string)
	return v
}

// UserAgentFromContext returns the client User-Agent, or "".
func UserAgentFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyUserAgent).(string)
	return v
}
