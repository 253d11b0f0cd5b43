package middleware

import (
	"context"
	"net/http"
)

// Identity is the caller's identity as asserted by the external auth
// gateway. This service never authenticates anyone itself; it trusts the
// headers the gateway injects.
type Identity struct {
	UserID string
	Role   string
}

const (
	identityKey contextKey = "identity"

	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"

	RoleUser  = "user"
	RoleAdmin = "admin"
)

func (id Identity) IsAdmin() bool {
	return id.Role == RoleAdmin
}

// ExtractIdentity copies the gateway identity headers into the request
// context. Requests without the headers pass through with an empty
// identity; handlers that require one reject those.
func ExtractIdentity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := Identity{
				UserID: r.Header.Get(HeaderUserID),
				Role:   r.Header.Get(HeaderUserRole),
			}
			ctx := context.WithValue(r.Context(), identityKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext returns the identity placed by ExtractIdentity.
func IdentityFromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(identityKey).(Identity); ok {
		return id
	}
	return Identity{}
}
