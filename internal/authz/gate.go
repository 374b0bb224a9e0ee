// Package authz maps acting users to the fixed capability set guarding every
// permit transition.
package authz

import (
	"strings"

	"github.com/hcsd/permit-clearance-api/internal/models"
)

// Capability names one of the three workflow powers.
type Capability string

const (
	CapDataEntry Capability = "data-entry"
	CapInspector Capability = "inspector"
	CapAdmin     Capability = "admin"
)

// roleAliases tolerates the historical display spellings alongside the role
// slugs.
var roleAliases = map[string]models.UserRole{
	"data_entry":     models.RoleDataEntry,
	"data entry":     models.RoleDataEntry,
	"inspector":      models.RoleInspector,
	"admin":          models.RoleAdmin,
	"administration": models.RoleAdmin,
	"superadmin":     models.RoleSuperAdmin,
}

// ResolveRole canonicalizes a role string, accepting both slugs and display
// names. ok is false for unknown roles.
func ResolveRole(raw string) (models.UserRole, bool) {
	role, ok := roleAliases[strings.ToLower(strings.TrimSpace(raw))]
	return role, ok
}

// Gate answers capability checks for a resolved role. Admin implies the
// data-entry and inspector capabilities; superadmin implies everything.
type Gate struct{}

// New returns a capability gate.
func New() *Gate {
	return &Gate{}
}

// Allows reports whether the role holds the capability.
func (g *Gate) Allows(role models.UserRole, cap Capability) bool {
	if role == models.RoleSuperAdmin {
		return true
	}
	switch cap {
	case CapDataEntry:
		return role == models.RoleDataEntry || role == models.RoleAdmin
	case CapInspector:
		return role == models.RoleInspector || role == models.RoleAdmin
	case CapAdmin:
		return role == models.RoleAdmin
	}
	return false
}

// CanDataEntry reports data-entry capability (data-entry or admin).
func (g *Gate) CanDataEntry(role models.UserRole) bool {
	return g.Allows(role, CapDataEntry)
}

// CanInspect reports inspector capability (inspector or admin).
func (g *Gate) CanInspect(role models.UserRole) bool {
	return g.Allows(role, CapInspector)
}

// CanAdmin reports admin capability.
func (g *Gate) CanAdmin(role models.UserRole) bool {
	return g.Allows(role, CapAdmin)
}
