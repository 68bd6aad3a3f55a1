package middleware

import (
	"net/http"

	"github.com/tenantgate/tenantgate/internal/api/response"
	"github.com/tenantgate/tenantgate/internal/auth"
)

// RequireRole returns middleware that rejects identities whose role is not
// in the allowed list. Roles are a flat set: every route names each role it
// admits.
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	allowed := make(map[auth.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			identity := GetIdentity(r.Context())
			if identity == nil {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", requestID)
				return
			}

			if !allowed[identity.Role] {
				response.Err(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
