package authz

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hcsd/permit-clearance-api/internal/models"
)

func TestResolveRoleAliases(t *testing.T) {
	cases := map[string]models.UserRole{
		"DATA_ENTRY":     models.RoleDataEntry,
		"Data Entry":     models.RoleDataEntry,
		"INSPECTOR":      models.RoleInspector,
		"Inspector":      models.RoleInspector,
		"ADMIN":          models.RoleAdmin,
		"Administration": models.RoleAdmin,
		"SUPERADMIN":     models.RoleSuperAdmin,
	}
	for raw, want := range cases {
		got, ok := ResolveRole(raw)
		require.True(t, ok, raw)
		require.Equal(t, want, got)
	}

	_, ok := ResolveRole("janitor")
	require.False(t, ok)
}

func TestGateCapabilities(t *testing.T) {
	gate := New()

	require.True(t, gate.CanDataEntry(models.RoleDataEntry))
	require.True(t, gate.CanDataEntry(models.RoleAdmin))
	require.False(t, gate.CanDataEntry(models.RoleInspector))

	require.True(t, gate.CanInspect(models.RoleInspector))
	require.True(t, gate.CanInspect(models.RoleAdmin))
	require.False(t, gate.CanInspect(models.RoleDataEntry))

	require.True(t, gate.CanAdmin(models.RoleAdmin))
	require.False(t, gate.CanAdmin(models.RoleInspector))
	require.False(t, gate.CanAdmin(models.RoleDataEntry))
}

func TestSuperAdminHoldsEverything(t *testing.T) {
	gate := New()
	for _, cap := range []Capability{CapDataEntry, CapInspector, CapAdmin} {
		require.True(t, gate.Allows(models.RoleSuperAdmin, cap))
	}
}
