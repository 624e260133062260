package core

import "context"

type contextKey string

const ctxKeyRemoteAddr contextKey = "remote_addr"

// ContextWithRemoteAddr adds the caller's address to context for the
// import history.
func ContextWithRemoteAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, ctxKeyRemoteAddr, addr)
}

// RemoteAddrFromContext extracts the caller's address from context.
func RemoteAddrFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRemoteAddr).(string); ok {
		return v
	}
	return ""
}
