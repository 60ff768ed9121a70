package entity

// Role is the closed set of account roles. The role is assigned at
// registration and never changes afterwards.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleTeacher    Role = "teacher"
	RoleStudent    Role = "student"
	RoleParent     Role = "parent"
)

// Roles lists every valid role value.
func Roles() []Role {
	return []Role{RoleSuperAdmin, RoleAdmin, RoleTeacher, RoleStudent, RoleParent}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleTeacher, RoleStudent, RoleParent:
		return true
	default:
		return false
	}
}

// Label returns the display name for the role.
func (r Role) Label() string {
	switch r {
	case RoleSuperAdmin:
		return "Super Administrator"
	case RoleAdmin:
		return "Administrator"
	case RoleTeacher:
		return "Teacher"
	case RoleStudent:
		return "Student"
	case RoleParent:
		return "Parent"
	default:
		return string(r)
	}
}

// IsAdmin reports whether the role is admin-level (admin or super_admin).
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// IsSuperAdmin reports whether the role is super_admin.
func (r Role) IsSuperAdmin() bool {
	return r == RoleSuperAdmin
}

// TokenAbility returns the reserved full-access ability string for the role,
// e.g. "role:admin".
func (r Role) TokenAbility() string {
	return "role:" + string(r)
}
