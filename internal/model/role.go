package model

import "strings"

// Role is the closed set of administrator roles.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleSuperAdmin:
		return RoleSuperAdmin, true
	}
	return "", false
}

func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// RoleSatisfies reports whether actual meets the required role.
// super_admin satisfies every requirement; admin satisfies admin only.
func RoleSatisfies(required Role, actual Role) bool {
	if actual == RoleSuperAdmin {
		return required == RoleAdmin || required == RoleSuperAdmin
	}
	return actual == RoleAdmin && required == RoleAdmin
}
