package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/waa-mobile/waapos/internal/shared"
)

// Role gates what a signed-in user may do.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCashier Role = "cashier"
)

// ParseRole maps user input onto a role.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleCashier:
		return RoleCashier, nil
	default:
		return "", shared.Invalid("role", fmt.Sprintf("unknown role %q", raw))
	}
}

// User represents an authenticated user account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateUserInput describes a new account.
type CreateUserInput struct {
	Username string
	Password string
	Role     Role
}
