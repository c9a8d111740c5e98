package domain

import (
	"strings"
	"time"
)

// Role enumerates account roles. The set is closed: adding a role is a code
// change, not configuration.
type Role string

const (
	RoleUser          Role = "user"
	RoleAdmin         Role = "admin"
	RoleResponsible   Role = "responsible"
	RoleClubPresident Role = "clubPresident"
)

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleResponsible, RoleClubPresident:
		return true
	}
	return false
}

// DefaultPhoto is the placeholder profile image reference.
const DefaultPhoto = "default_profile_picture.jpg"

// User is the domain model for university-affiliated accounts.
//
// PasswordHash and Active are excluded from default read projections; the
// token digest fields hold only SHA-256 digests, never the raw tokens, and
// each digest is set or cleared together with its expiry.
type User struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	Photo        string
	Role         Role
	PasswordHash string
	Active       bool

	ActivationTokenDigest    *string
	ActivationTokenExpiresAt *time.Time
	PasswordResetTokenDigest *string
	PasswordResetExpiresAt   *time.Time
	PasswordChangedAt        *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PasswordChangedAfter reports whether the password was mutated after the
// given token issue time. Second granularity matches the token's iat claim.
func (u *User) PasswordChangedAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.Unix() > issuedAt.Unix()
}

// NormalizeEmail lowercases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
