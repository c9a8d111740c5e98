package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoleValid(t *testing.T) {
	for _, role := range []Role{RoleUser, RoleAdmin, RoleResponsible, RoleClubPresident} {
		assert.True(t, role.Valid(), "role %q", role)
	}
	assert.False(t, Role("superuser").Valid())
	assert.False(t, Role("").Valid())
}

func TestPasswordChangedAfter(t *testing.T) {
	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	u := &User{}
	assert.False(t, u.PasswordChangedAfter(issued), "never-changed password is never stale")

	before := issued.Add(-time.Hour)
	u.PasswordChangedAt = &before
	assert.False(t, u.PasswordChangedAfter(issued))

	after := issued.Add(time.Hour)
	u.PasswordChangedAt = &after
	assert.True(t, u.PasswordChangedAfter(issued))

	// sub-second drift collapses at iat granularity
	sameSecond := issued.Add(500 * time.Millisecond)
	u.PasswordChangedAt = &sameSecond
	assert.False(t, u.PasswordChangedAfter(issued))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@univ-tlemcen.dz", NormalizeEmail("  A@Univ-Tlemcen.DZ "))
}
