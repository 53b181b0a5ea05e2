package authz

import (
	"testing"

	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livelihood-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allRoles = []enums.Role{enums.RoleBeneficiary, enums.RoleStaff, enums.RoleAdmin, enums.RoleSuperAdmin}

func TestPermittedInheritsUpwards(t *testing.T) {
	for _, action := range Actions() {
		min, ok := MinimumRole(action)
		require.True(t, ok)
		for _, role := range allRoles {
			assert.Equal(t, role.Rank() >= min.Rank(), Permitted(role, action), "role=%s action=%s", role, action)
		}
	}
}

func TestPermittedDeniesUnknown(t *testing.T) {
	assert.False(t, Permitted("guest", ApplicationReadOwn))
	assert.False(t, Permitted(enums.RoleSuperAdmin, Action("ledger.transfer")))
}

func TestAuthorizeReturnsForbidden(t *testing.T) {
	require.NoError(t, Authorize(enums.RoleStaff, ApplicationReview))

	err := Authorize(enums.RoleBeneficiary, ApplicationReview)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
}

func TestCanPromote(t *testing.T) {
	cases := []struct {
		actor, target enums.Role
		want          bool
	}{
		{enums.RoleStaff, enums.RoleStaff, false},
		{enums.RoleStaff, enums.RoleAdmin, false},
		{enums.RoleAdmin, enums.RoleStaff, true},
		{enums.RoleAdmin, enums.RoleAdmin, false},
		{enums.RoleSuperAdmin, enums.RoleStaff, true},
		{enums.RoleSuperAdmin, enums.RoleAdmin, true},
		{enums.RoleSuperAdmin, enums.RoleSuperAdmin, false},
		{enums.RoleSuperAdmin, enums.RoleBeneficiary, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanPromote(tc.actor, tc.target), "actor=%s target=%s", tc.actor, tc.target)
	}
}

func TestCanDemote(t *testing.T) {
	cases := []struct {
		actor, current enums.Role
		want           bool
	}{
		{enums.RoleStaff, enums.RoleStaff, false},
		{enums.RoleAdmin, enums.RoleStaff, true},
		{enums.RoleAdmin, enums.RoleAdmin, false},
		{enums.RoleSuperAdmin, enums.RoleAdmin, true},
		{enums.RoleSuperAdmin, enums.RoleSuperAdmin, false},
		{enums.RoleAdmin, enums.RoleBeneficiary, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanDemote(tc.actor, tc.current), "actor=%s current=%s", tc.actor, tc.current)
	}
}

func TestCanAssignRole(t *testing.T) {
	assert.True(t, CanAssignRole(enums.RoleAdmin, enums.RoleStaff))
	assert.True(t, CanAssignRole(enums.RoleAdmin, enums.RoleBeneficiary))
	assert.False(t, CanAssignRole(enums.RoleAdmin, enums.RoleAdmin))
	assert.True(t, CanAssignRole(enums.RoleSuperAdmin, enums.RoleAdmin))
	assert.False(t, CanAssignRole(enums.RoleSuperAdmin, enums.RoleSuperAdmin))
	assert.False(t, CanAssignRole(enums.RoleStaff, enums.RoleBeneficiary))
}

func TestGuardSelfTarget(t *testing.T) {
	id := uuid.New()
	require.NoError(t, GuardSelfTarget(id, uuid.New()))

	err := GuardSelfTarget(id, id)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
	assert.Equal(t, ReasonSelfTarget, pkgerrors.ReasonOf(err))
}
