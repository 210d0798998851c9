package crm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridiancrm/meridian/pkg/apperr"
	"github.com/meridiancrm/meridian/pkg/auth"
	"github.com/meridiancrm/meridian/pkg/authz"
)

func TestScopeAssignee(t *testing.T) {
	policy := authz.DefaultPolicy()
	requested := int64(99)

	t.Run("scoped role is forced to own records", func(t *testing.T) {
		actor := &auth.User{ID: 7, Role: auth.RoleSalesExecutive}

		got := ScopeAssignee(policy, actor, &requested)
		require.NotNil(t, got)
		assert.Equal(t, int64(7), *got)

		got = ScopeAssignee(policy, actor, nil)
		require.NotNil(t, got)
		assert.Equal(t, int64(7), *got)
	})

	t.Run("exempt role keeps the requested filter", func(t *testing.T) {
		actor := &auth.User{ID: 7, Role: auth.RoleSalesManager}

		got := ScopeAssignee(policy, actor, &requested)
		require.NotNil(t, got)
		assert.Equal(t, int64(99), *got)

		assert.Nil(t, ScopeAssignee(policy, actor, nil))
	})
}

func TestCheckOwnership(t *testing.T) {
	policy := authz.DefaultPolicy()
	own := int64(7)
	other := int64(8)

	tests := []struct {
		name       string
		role       auth.Role
		assignedTo *int64
		wantErr    bool
	}{
		{"scoped actor owns record", auth.RoleSalesExecutive, &own, false},
		{"scoped actor foreign record", auth.RoleSalesExecutive, &other, true},
		{"scoped actor unassigned record", auth.RoleSalesExecutive, nil, true},
		{"exempt actor foreign record", auth.RoleSalesManager, &other, false},
		{"exempt actor unassigned record", auth.RoleSystemAdmin, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor := &auth.User{ID: 7, Role: tt.role}
			err := CheckOwnership(policy, actor, tt.assignedTo)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperr.Is(err, apperr.KindForbidden))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultAssignee(t *testing.T) {
	actor := &auth.User{ID: 7, Role: auth.RoleSalesExecutive}
	requested := int64(3)

	got := DefaultAssignee(actor, nil)
	require.NotNil(t, got)
	assert.Equal(t, int64(7), *got)

	got = DefaultAssignee(actor, &requested)
	require.NotNil(t, got)
	assert.Equal(t, int64(3), *got)
}
