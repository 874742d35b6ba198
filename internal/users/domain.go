package users

import "time"

// User represents a user account for management, joined with its role
// assignment.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	Role      string    `json:"role"`
}

// NewUser is the payload for provisioning an account.
type NewUser struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,max=120"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,max=64"`
}

// RoleChange is the payload for reassigning a role.
type RoleChange struct {
	Role string `json:"role" validate:"required,max=64"`
}
