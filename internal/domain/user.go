package domain

import (
	"strings"
	"time"
)

// User is an authenticated employee account.
type User struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DisplayName returns the full name, falling back to the first name and then the username.
func (u *User) DisplayName() string {
	first := strings.TrimSpace(u.FirstName)
	last := strings.TrimSpace(u.LastName)
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	default:
		return u.Username
	}
}

// UserProfile holds the role and contact details of a User. Exactly one per user.
type UserProfile struct {
	UserID            int64
	Role              Role
	PhoneNumber       string
	Department        string
	Bio               string
	ProfilePictureKey *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
