package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of actor roles on the platform. Authorization
// code switches exhaustively over these values and treats anything else
// as no-access, so a new role is invisible until explicitly granted.
type Role string

const (
	RolePropertyManager Role = "PROPERTY_MANAGER"
	RoleOwner           Role = "OWNER"
	RoleTenant          Role = "TENANT"
	RoleTechnician      Role = "TECHNICIAN"
)

// ParseRole converts a claim/string value to a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RolePropertyManager, RoleOwner, RoleTenant, RoleTechnician:
		return Role(s), nil
	default:
		return "", fmt.Errorf("invalid role: %q", s)
	}
}

// Principal is the authenticated actor attached to every request by the
// auth middleware. Immutable for the duration of a request.
type Principal struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

type User struct {
	ID          uuid.UUID `json:"id"`
	Role        Role      `json:"role"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	PhoneNumber *string   `json:"phone_number,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
