package auth

import (
	"context"
	"net/http"
	"strings"
)

type ctxUserKey struct{}

// CurrentUser resolves the acting profile id for a request. Clients
// identify themselves with the X-User-ID header; a ?viewer= query
// parameter takes precedence so read-only tooling can impersonate
// without custom headers. Empty means anonymous.
func CurrentUser(r *http.Request) string {
	if v, ok := r.Context().Value(ctxUserKey{}).(string); ok && v != "" {
		return v
	}
	if v := strings.TrimSpace(r.URL.Query().Get("viewer")); v != "" {
		return v
	}
	return strings.TrimSpace(r.Header.Get("X-User-ID"))
}

// WithUser returns a request carrying an explicit acting profile id.
// Used by tests and by internal callers that bypass the HTTP gateway.
func WithUser(r *http.Request, id string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, id))
}
