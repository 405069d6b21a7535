package domain

import "time"

// Role is the caller's position in the university.
type Role string

const (
	RoleStudent    Role = "student"
	RoleStaff      Role = "staff"
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleStaff, RoleTechnician, RoleAdmin:
		return true
	}
	return false
}

// IsSupport reports whether the role works tickets rather than only filing them.
func (r Role) IsSupport() bool {
	return r == RoleTechnician || r == RoleAdmin
}

// User is a person known to the helpdesk: requesters and handlers alike.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Department   string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
