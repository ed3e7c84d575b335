package dto

import (
	"time"

	"github.com/issuedesk/issue-service/internal/domain"
)

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// CreateUserRequest is the admin variant of RegisterRequest.
type CreateUserRequest struct {
	RegisterRequest
	Role string `json:"role"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ChangePasswordRequest payload.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// SetRoleRequest payload.
type SetRoleRequest struct {
	Role string `json:"role"`
}

// SetActiveRequest payload.
type SetActiveRequest struct {
	Active *bool `json:"active"`
}

// UpdateProfileRequest payload. Omitted fields are unchanged.
type UpdateProfileRequest struct {
	FirstName         *string `json:"first_name"`
	LastName          *string `json:"last_name"`
	Email             *string `json:"email"`
	PhoneNumber       *string `json:"phone_number"`
	Department        *string `json:"department"`
	Bio               *string `json:"bio"`
	ProfilePictureKey *string `json:"profile_picture_key"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// UserResponse describes an account.
type UserResponse struct {
	ID          int64       `json:"id"`
	Username    string      `json:"username"`
	FirstName   string      `json:"first_name"`
	LastName    string      `json:"last_name"`
	Email       string      `json:"email"`
	DisplayName string      `json:"display_name"`
	Role        domain.Role `json:"role"`
	RoleLabel   string      `json:"role_label"`
	IsActive    bool        `json:"is_active"`
}

// ProfileResponse is the caller's account plus profile.
type ProfileResponse struct {
	User              UserResponse `json:"user"`
	PhoneNumber       string       `json:"phone_number"`
	Department        string       `json:"department"`
	Bio               string       `json:"bio"`
	ProfilePictureKey *string      `json:"profile_picture_key"`
}
