package dto

import (
	"time"

	"github.com/adelbrx/univhub/internal/domain"
)

// SignupRequest payload for new accounts.
type SignupRequest struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ForgotPasswordRequest payload for requesting a reset link.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest payload accompanying a raw reset token.
type ResetPasswordRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// UpdatePasswordRequest payload for an authenticated password change.
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// UpdateMeRequest payload for self-service profile edits.
type UpdateMeRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Photo     string `json:"photo"`
}

// AdminUpdateUserRequest payload for administrative profile edits.
type AdminUpdateUserRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Photo     string `json:"photo"`
	Role      string `json:"role"`
	Active    *bool  `json:"active"`
}

// UserResponse is the default read projection: no password hash, no token
// fields, no active flag.
type UserResponse struct {
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Email     string      `json:"email"`
	Photo     string      `json:"photo"`
	Role      domain.Role `json:"role"`
}

// SignupResponse additionally shows the (inactive) activation state.
type SignupResponse struct {
	UserResponse
	Active bool `json:"active"`
}

// NewUserResponse maps a domain user onto the default projection.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		Photo:     user.Photo,
		Role:      user.Role,
	}
}

// AuthResponse carries an issued session token.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
