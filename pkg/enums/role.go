package enums

import "fmt"

// Role is the privilege tier a user holds. Tiers are totally ordered.
type Role string

const (
	RoleBeneficiary Role = "beneficiary"
	RoleStaff       Role = "staff"
	RoleAdmin       Role = "admin"
	RoleSuperAdmin  Role = "super_admin"
)

// validRoles is ordered lowest privilege first.
var validRoles = []Role{
	RoleBeneficiary,
	RoleStaff,
	RoleAdmin,
	RoleSuperAdmin,
}

// AllRoles returns every role, lowest privilege first.
func AllRoles() []Role {
	return append([]Role(nil), validRoles...)
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	return r.Rank() >= 0
}

// Rank returns the position of the role in the privilege order, or -1 when unknown.
func (r Role) Rank() int {
	for i, candidate := range validRoles {
		if candidate == r {
			return i
		}
	}
	return -1
}

// AtLeast reports whether r ranks at or above min. Unknown roles never qualify.
func (r Role) AtLeast(min Role) bool {
	if !r.IsValid() || !min.IsValid() {
		return false
	}
	return r.Rank() >= min.Rank()
}

// Above reports whether r ranks strictly higher than other.
func (r Role) Above(other Role) bool {
	if !r.IsValid() || !other.IsValid() {
		return false
	}
	return r.Rank() > other.Rank()
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
