package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/meridiancrm/meridian/pkg/apperr"
	"github.com/meridiancrm/meridian/pkg/httputil"
	"github.com/meridiancrm/meridian/pkg/observability"
)

type contextKey string

const userContextKey contextKey = "auth_user"

// WithUser stores the authenticated user in the context
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// CurrentUser retrieves the authenticated user from the context
func CurrentUser(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userContextKey).(*User)
	return user, ok
}

// BearerToken extracts the bearer token from the Authorization header
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Middleware authenticates every request with the service and attaches
// the resolved user to the context
func Middleware(service *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				httputil.WriteAppError(w, r, apperr.Unauthenticated("authentication required"))
				return
			}

			user, err := service.Authenticate(r.Context(), token)
			if err != nil {
				httputil.WriteAppError(w, r, err)
				return
			}

			ctx := WithUser(r.Context(), user)
			ctx = observability.WithActorID(ctx, user.ID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
