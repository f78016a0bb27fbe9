package models

import (
	"time"

	"github.com/google/uuid"
)

// UserRole represents the role of an account
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// Valid reports whether r is a known role
func (r UserRole) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents an account allowed to chat with the characters it owns
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Name      *string   `json:"name,omitempty" db:"name"`
	Email     string    `json:"email" db:"email"`
	Role      UserRole  `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "user_accounts"
}

// NewUser creates a new User instance with the default role
func NewUser(username, email string) *User {
	return &User{
		ID:        uuid.New(),
		Username:  username,
		Email:     email,
		Role:      RoleUser,
		CreatedAt: time.Now(),
	}
}

// IsAdmin returns true if the user has admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
