package identity

import (
	"context"
	"net/http"
)

// Identity is the authenticated principal for a request. Authentication
// itself happens upstream; the gateway injects the headers this package
// reads.
type Identity struct {
	UserID  string
	Email   string
	Company string
	Admin   bool
}

type contextKey struct{}

// Middleware extracts the identity headers set by the upstream gateway
// and stores them on the request context. Requests without a user id
// pass through unauthenticated; handlers decide whether that is an
// error.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Identity{
			UserID:  r.Header.Get("X-User-ID"),
			Email:   r.Header.Get("X-User-Email"),
			Company: r.Header.Get("X-Company-Name"),
			Admin:   r.Header.Get("X-User-Role") == "admin",
		}
		if id.UserID == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), contextKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext returns the identity stored by Middleware, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// WithIdentity returns a context carrying id. Test helper and internal
// call-site glue.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}
