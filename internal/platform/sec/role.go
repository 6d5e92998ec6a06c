// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import "strings"

// # User Roles

// Role represents the authorization level granted to an account.
type Role string

const (
	// Unrestricted system access, including user and settings management
	RoleSuperAdmin Role = "superadmin"

	// Manages and publishes all content
	RoleAdmin Role = "admin"

	// Writes content and may only modify what they created
	RoleEditor Role = "editor"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := rolePermissions[r]
	return ok
}

// ParseRole converts a stored role string, ignoring case and surrounding space.
func ParseRole(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	return role, role.Valid()
}
