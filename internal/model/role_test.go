package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	role, ok := ParseRole(" Admin ")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, role)

	role, ok = ParseRole("SUPER_ADMIN")
	assert.True(t, ok)
	assert.Equal(t, RoleSuperAdmin, role)

	_, ok = ParseRole("owner")
	assert.False(t, ok)
}

func TestRoleSatisfies(t *testing.T) {
	assert.True(t, RoleSatisfies(RoleAdmin, RoleAdmin))
	assert.True(t, RoleSatisfies(RoleAdmin, RoleSuperAdmin))
	assert.True(t, RoleSatisfies(RoleSuperAdmin, RoleSuperAdmin))
	assert.False(t, RoleSatisfies(RoleSuperAdmin, RoleAdmin))
	assert.False(t, RoleSatisfies(RoleAdmin, Role("viewer")))
	assert.False(t, RoleSatisfies(Role(""), RoleAdmin))
}
