package models

import "time"

// Role determines the default permission set of a user.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// Roles lists every known role in ascending order of privilege.
var Roles = []Role{RoleUser, RoleAdmin, RoleSuperAdmin}

// ValidRole reports whether s names a known role.
func ValidRole(s string) bool {
	for _, r := range Roles {
		if string(r) == s {
			return true
		}
	}
	return false
}

// User is a platform account. It maps to the `users` table in SQLite and
// the `users` collection in MongoDB.
type User struct {
	ID           string       `json:"_id"`
	FirstName    string       `json:"firstName"`
	LastName     string       `json:"lastName"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	Phone        string       `json:"phone"`
	Address      string       `json:"address"`
	Role         Role         `json:"role"`
	IsActive     bool         `json:"isActive"`
	Avatar       string       `json:"avatar"`
	Department   string       `json:"department"`
	Permissions  []Permission `json:"permissions"`
	LastLogin    *time.Time   `json:"lastLogin,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// FullName joins first and last name the way staff listings display it.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// EffectivePermissions returns the union of the role defaults and the
// explicit grants. Role defaults come first, followed by extra grants, each
// in canonical order and without duplicates.
func (u *User) EffectivePermissions() []Permission {
	seen := make(map[Permission]bool, len(AllPermissions))
	out := make([]Permission, 0, len(AllPermissions))
	for _, p := range DefaultPermissions(u.Role) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	granted := make(map[Permission]bool, len(u.Permissions))
	for _, p := range u.Permissions {
		granted[p] = true
	}
	for _, p := range AllPermissions {
		if granted[p] && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// HasPermission reports whether p is part of the effective permission set.
func (u *User) HasPermission(p Permission) bool {
	for _, have := range u.EffectivePermissions() {
		if have == p {
			return true
		}
	}
	return false
}

// HasRole reports whether the user's role is one of roles.
func (u *User) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// Ref returns the populated reference used when a user is embedded in a report.
func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email}
}
