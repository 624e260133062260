package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/tenderdesk/internal/core"
)

// withRequestMetadata adds the client IP to ctx for the import history.
func withRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithRemoteAddr(ctx, clientIP(r)) // already processed by TrustedRealIP
}
