package models

// Role is an academy authorization role.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleCashier  Role = "CASHIER"
	RoleStaff    Role = "STAFF"
	RoleSecurity Role = "SECURITY"
	RoleTeacher  Role = "TEACHER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCashier, RoleStaff, RoleSecurity, RoleTeacher:
		return true
	}
	return false
}

// RoleSet is a set of roles allowed to use an endpoint.
type RoleSet map[Role]struct{}

// NewRoleSet builds a RoleSet from the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// User is the durable user store's view of an account.
type User struct {
	ID          string `json:"id" yaml:"id"`
	Username    string `json:"username" yaml:"username"`
	DisplayName string `json:"name" yaml:"name"`
	Role        Role   `json:"role" yaml:"role"`
}

// BearerIdentity is the identity carried by a verified mobile bearer token.
// It is rebuilt on every request and never stored.
type BearerIdentity struct {
	UserID      string
	Username    string
	DisplayName string
	Role        Role
}

// HasRole reports whether the identity holds one of the allowed roles.
func HasRole(identity *BearerIdentity, allowed RoleSet) bool {
	if identity == nil {
		return false
	}
	_, ok := allowed[identity.Role]
	return ok
}
