package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/tenantgate/tenantgate/internal/api/response"
	"github.com/tenantgate/tenantgate/internal/auth"
)

const identityKey contextKey = "identity"

// TokenVerifier resolves an access token to the identity it carries.
type TokenVerifier interface {
	Verify(token string) (*auth.Identity, error)
}

// VerifierFunc adapts a function to TokenVerifier.
type VerifierFunc func(token string) (*auth.Identity, error)

// Verify calls f(token).
func (f VerifierFunc) Verify(token string) (*auth.Identity, error) {
	return f(token)
}

// Auth is middleware that extracts the bearer token from the Authorization
// header and resolves it to an Identity. Missing, malformed and invalid
// tokens all return the same 401.
func Auth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", GetRequestID(r.Context()))
				return
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", GetRequestID(r.Context()))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// GetIdentity retrieves the authenticated Identity from the request context.
func GetIdentity(ctx context.Context) *auth.Identity {
	if id, ok := ctx.Value(identityKey).(*auth.Identity); ok {
		return id
	}
	return nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
