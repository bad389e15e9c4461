package models

// Permission is a named capability checked per request.
type Permission string

const (
	PermViewReports       Permission = "view_reports"
	PermManageReports     Permission = "manage_reports"
	PermViewUsers         Permission = "view_users"
	PermManageUsers       Permission = "manage_users"
	PermViewAnalytics     Permission = "view_analytics"
	PermSystemSettings    Permission = "system_settings"
	PermEmergencyResponse Permission = "emergency_response"
)

// AllPermissions is the canonical ordering used whenever permission sets are listed.
var AllPermissions = []Permission{
	PermViewReports,
	PermManageReports,
	PermViewUsers,
	PermManageUsers,
	PermViewAnalytics,
	PermSystemSettings,
	PermEmergencyResponse,
}

// Admins "inherit" user capabilities: every staff role starts from the user
// set and adds triage, analytics and, for superadmins, account management.
var rolePermissions = map[Role][]Permission{
	RoleUser: {PermViewReports},
	RoleAdmin: {
		PermViewReports,
		PermManageReports,
		PermViewUsers,
		PermViewAnalytics,
		PermEmergencyResponse,
	},
	RoleSuperAdmin: {
		PermViewReports,
		PermManageReports,
		PermViewUsers,
		PermManageUsers,
		PermViewAnalytics,
		PermSystemSettings,
		PermEmergencyResponse,
	},
}

// DefaultPermissions returns a copy of the permissions granted by role.
// Unknown roles grant nothing.
func DefaultPermissions(role Role) []Permission {
	src := rolePermissions[role]
	out := make([]Permission, len(src))
	copy(out, src)
	return out
}

// ValidPermission reports whether s names a known permission.
func ValidPermission(s string) bool {
	for _, p := range AllPermissions {
		if string(p) == s {
			return true
		}
	}
	return false
}

// IsStaff reports whether role is one of the administrative roles.
func IsStaff(role Role) bool {
	return role == RoleAdmin || role == RoleSuperAdmin
}
