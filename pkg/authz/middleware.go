package authz

import (
	"net/http"
	"strings"

	"github.com/meridiancrm/meridian/pkg/apperr"
	"github.com/meridiancrm/meridian/pkg/auth"
	"github.com/meridiancrm/meridian/pkg/httputil"
)

// RequireRoles gates a route on a static role set. It runs after
// authentication; a missing user in context is a wiring bug and fails
// closed as Unauthenticated.
func RequireRoles(policy *Policy, required ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.CurrentUser(r.Context())
			if !ok {
				httputil.WriteAppError(w, r, apperr.Unauthenticated("authentication required"))
				return
			}

			if !policy.Allowed(user.Role, required...) {
				httputil.WriteAppError(w, r, apperr.Forbidden(
					"access denied: requires %s", roleList(required)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func roleList(roles []auth.Role) string {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	return strings.Join(names, " or ")
}
