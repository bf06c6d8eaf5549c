package domain

import "time"

// Role is a user's permission level.
type Role string

const (
	// RoleLibrarian manages the catalog and sees every loan.
	RoleLibrarian Role = "librarian"
	// RoleMember borrows and returns books.
	RoleMember Role = "member"
)

// User is a library account.
type User struct {
	Syncable
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	City         string    `json:"city,omitempty"`
	Age          int       `json:"age,omitempty"`
	Role         Role      `json:"role"`
	IsRoot       bool      `json:"is_root"`
	LastLoginAt  time.Time `json:"last_login_at"`
}

// IsLibrarian reports whether the user may manage the catalog and view all loans.
// The root account is always a librarian.
func (u *User) IsLibrarian() bool {
	return u.IsRoot || u.Role == RoleLibrarian
}

