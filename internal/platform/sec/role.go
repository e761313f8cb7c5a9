// Copyright (c) 2026 AetherCore contributors.

package sec

// # Operator Roles

// UserRole represents the authorization level granted to an admin-surface caller.
type UserRole string

const (
	// RoleAdmin has unrestricted access, including mutating endpoints
	// (cancel scheduled task, force-expire a raid or banner).
	RoleAdmin UserRole = "admin"

	// RoleOperator can invoke read-only diagnostics endpoints only.
	RoleOperator UserRole = "operator"

	// RoleService is granted to trusted machine callers (e.g. gameplay
	// modules reporting metrics) with the same read-only ceiling as RoleOperator.
	RoleService UserRole = "service"
)

// # Role Hierarchy

// AtLeast checks if the current role meets or exceeds the required target role.
func (r UserRole) AtLeast(target UserRole) bool {
	return r.level() >= target.level()
}

// level maps a role to a numeric hierarchy level for comparison logic.
func (r UserRole) level() int {

	// Linear scale (10-40) allows for future intermediate roles
	switch r {
	case RoleAdmin:
		return 40
	case RoleOperator:
		return 20
	case RoleService:
		return 20
	default:
		return 0
	}
}
