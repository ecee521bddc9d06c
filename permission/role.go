package permission

// RoleTag is the platform role carried in credentials and token claims.
type RoleTag uint8

const (
	// RoleUnknown is the zero tag for unrecognized role strings.
	RoleUnknown RoleTag = iota
	// RoleSuperAdmin operates the SaaS portal across all tenants.
	RoleSuperAdmin
	// RoleSchoolAdmin administers a single school tenant.
	RoleSchoolAdmin
	// RoleTeacher is school teaching staff.
	RoleTeacher
	// RoleStudent is an enrolled student.
	RoleStudent
	// RoleParent is a student guardian.
	RoleParent
)

var roleNames = map[RoleTag]string{
	RoleSuperAdmin:  "super_admin",
	RoleSchoolAdmin: "school_admin",
	RoleTeacher:     "teacher",
	RoleStudent:     "student",
	RoleParent:      "parent",
}

// ParseRole maps a wire role string to its tag. Unrecognized strings map
// to [RoleUnknown] rather than failing; the permission set, not the role
// name, is what gates access.
func ParseRole(s string) RoleTag {
	for tag, name := range roleNames {
		if name == s {
			return tag
		}
	}
	return RoleUnknown
}

// String returns the wire form of the role.
func (r RoleTag) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether the tag is one of the platform roles.
func (r RoleTag) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// Permission name convention used across the platform API:
// <action>_<model>, e.g. "view_student", "update_grade".
const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Name builds a conventional permission name from an action and a model.
func Name(action, model string) string {
	return action + "_" + model
}

// Baseline returns the default permission set granted to a role before any
// per-user grants from the server are applied. Server-returned permission
// lists always replace, never merge with, these defaults.
func Baseline(r RoleTag) Set {
	switch r {
	case RoleSuperAdmin:
		return NewSet(
			"manage_tenants",
			"manage_schools",
			"manage_users",
			"view_reports",
		)
	case RoleSchoolAdmin:
		return NewSet(
			Name(ActionView, "student"), Name(ActionCreate, "student"), Name(ActionUpdate, "student"), Name(ActionDelete, "student"),
			Name(ActionView, "teacher"), Name(ActionCreate, "teacher"), Name(ActionUpdate, "teacher"),
			Name(ActionView, "class"), Name(ActionCreate, "class"), Name(ActionUpdate, "class"),
			"view_reports",
		)
	case RoleTeacher:
		return NewSet(
			Name(ActionView, "student"),
			Name(ActionView, "class"),
			Name(ActionView, "grade"), Name(ActionCreate, "grade"), Name(ActionUpdate, "grade"),
			Name(ActionView, "attendance"), Name(ActionCreate, "attendance"),
		)
	case RoleStudent:
		return NewSet(
			Name(ActionView, "grade"),
			Name(ActionView, "class"),
			Name(ActionView, "attendance"),
		)
	case RoleParent:
		return NewSet(
			Name(ActionView, "grade"),
			Name(ActionView, "attendance"),
		)
	default:
		return NewSet()
	}
}
