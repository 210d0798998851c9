package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meridiancrm/meridian/pkg/auth"
)

func TestPolicyAllowed(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		name     string
		role     auth.Role
		required []auth.Role
		want     bool
	}{
		{
			name:     "empty required set admits anyone",
			role:     auth.RoleCustomer,
			required: nil,
			want:     true,
		},
		{
			name:     "role in set",
			role:     auth.RoleSystemAdmin,
			required: []auth.Role{auth.RoleSystemAdmin, auth.RoleSalesManager},
			want:     true,
		},
		{
			name:     "role not in set",
			role:     auth.RoleSalesExecutive,
			required: []auth.Role{auth.RoleSystemAdmin},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Allowed(tt.role, tt.required...))
		})
	}
}

func TestPolicyRowScoped(t *testing.T) {
	policy := DefaultPolicy()

	assert.True(t, policy.RowScoped(auth.RoleSalesExecutive))

	for _, role := range []auth.Role{
		auth.RoleSystemAdmin,
		auth.RoleSalesManager,
		auth.RoleMarketingExecutive,
		auth.RoleSupportExecutive,
		auth.RoleCustomer,
	} {
		assert.False(t, policy.RowScoped(role), "role %s should not be row scoped", role)
	}
}

func TestPolicyInjectable(t *testing.T) {
	// A synthetic policy that scopes managers instead
	policy := NewPolicy(auth.RoleSystemAdmin, auth.RoleSalesExecutive)

	assert.True(t, policy.RowScoped(auth.RoleSalesManager))
	assert.False(t, policy.RowScoped(auth.RoleSalesExecutive))
}

func TestRequireRoles(t *testing.T) {
	policy := DefaultPolicy()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("allowed role passes", func(t *testing.T) {
		handler := RequireRoles(policy, auth.RoleSystemAdmin)(next)

		req := httptest.NewRequest(http.MethodGet, "/audit-logs", nil)
		req = req.WithContext(auth.WithUser(req.Context(), &auth.User{ID: 1, Role: auth.RoleSystemAdmin}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("forbidden role reports required set", func(t *testing.T) {
		handler := RequireRoles(policy, auth.RoleSystemAdmin, auth.RoleSalesManager)(next)

		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		req = req.WithContext(auth.WithUser(req.Context(), &auth.User{ID: 2, Role: auth.RoleSalesExecutive}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "System Admin or Sales Manager")
		assert.Contains(t, rec.Body.String(), `"success":false`)
	})

	t.Run("missing user fails closed", func(t *testing.T) {
		handler := RequireRoles(policy)(next)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leads", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
