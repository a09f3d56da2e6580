// Package auth issues and validates the bearer tokens of the rolesync API.
package auth

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the permission level carried by a token.
type Role string

const (
	// RoleAdmin may change mappings, run reconciliations and toggle settings.
	RoleAdmin Role = "admin"
	// RoleViewer may only read.
	RoleViewer Role = "viewer"
)

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleViewer}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return slices.Contains(Roles, r)
}

// Claims are the JWT claims of an API token. The operator name is the
// registered subject claim.
type Claims struct {
	jwt.RegisteredClaims

	// Role is the token's permission level.
	Role Role `json:"role"`
}

// Operator returns the name the token was issued to.
func (c *Claims) Operator() string {
	return c.Subject
}

// IsAdmin returns true if the token carries the admin role.
func (c *Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}
