package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/parleyhq/parley/internal/domain/billing"
)

type authUserCtxKey struct{}

// DefaultAdminID is the user id injected when authentication is disabled.
// Local deployments create this row with `parley admin init`.
const DefaultAdminID = "00000000-0000-0000-0000-000000000000"

// publicPaths are exempt from authentication.
var publicPaths = map[string]bool{
	"/health": true,
}

// Authenticator resolves an API token to a user.
type Authenticator interface {
	VerifyToken(ctx context.Context, token string) (*billing.User, error)
}

// Auth returns middleware that validates Bearer API tokens.
// When authEnabled is false, a default admin context is injected.
// WebSocket paths are skipped; the hub runs its own first-frame handshake.
func Auth(authn Authenticator, authEnabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !authEnabled {
				defaultUser := &billing.User{
					ID:    DefaultAdminID,
					Email: "admin@localhost",
					Tier:  billing.TierPaid,
				}
				ctx := context.WithValue(r.Context(), authUserCtxKey{}, defaultUser)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if publicPaths[r.URL.Path] || strings.HasPrefix(r.URL.Path, "/ws/") {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w, "authorization required")
				return
			}

			u, err := authn.VerifyToken(r.Context(), token)
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), authUserCtxKey{}, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFrom returns the authenticated user stored in the context, if any.
func UserFrom(ctx context.Context) (*billing.User, bool) {
	u, ok := ctx.Value(authUserCtxKey{}).(*billing.User)
	return u, ok
}

// WithUser stores a user in the context. Exposed for handler tests.
func WithUser(ctx context.Context, u *billing.User) context.Context {
	return context.WithValue(ctx, authUserCtxKey{}, u)
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, prefix))
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
