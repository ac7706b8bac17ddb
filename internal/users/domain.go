// Package users manages back-office operator accounts.
package users

import "time"

// Role is the authorization level of a user.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleAccountant Role = "accountant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleAccountant
}

// User is one operator account. The password hash never leaves the server.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CreateInput for new users. Password arrives plain and is hashed by the
// service.
type CreateInput struct {
	Email    string
	Name     string
	Role     Role
	Password string
}

// Patch holds the optional profile fields of a partial update. Passwords
// change through SetPassword, never here.
type Patch struct {
	Email *string
	Name  *string
	Role  *Role
}

// Empty reports whether the patch carries no fields.
func (p Patch) Empty() bool {
	return p.Email == nil && p.Name == nil && p.Role == nil
}

// ListFilters narrows List results.
type ListFilters struct {
	Query string
	Role  Role
}
