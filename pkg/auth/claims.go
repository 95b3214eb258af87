// Package auth issues and validates the RS256 bearer tokens used by the
// REST surface and the WebSocket hub.
package auth

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// Well-known roles.
const (
	// RoleVessel marks principals that are vessels rather than operators.
	// Vessel accounts share their id with the vessel they belong to.
	RoleVessel = "vessel"

	// RoleServer marks tokens the server mints for itself.
	RoleServer = "server"
)

// Claims are the token claims of a flightd bearer token.
type Claims struct {
	jwt.RegisteredClaims

	// UserID is the principal's user id. For vessel accounts this equals
	// the vessel id.
	UserID string `json:"uid"`

	// UniqueName is the login name.
	UniqueName string `json:"unique_name"`

	// Name is the display name.
	Name string `json:"name"`

	// Roles the principal carries.
	Roles []string `json:"roles"`

	// Resources optionally narrows the token to a set of entity ids. An
	// absent list means the token is unrestricted; tokens minted from a
	// scoped authorization code inherit its resource list.
	Resources []string `json:"resources,omitempty"`
}

// HasRole reports whether the token carries the given role.
func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// IsVessel reports whether the token belongs to a vessel account.
func (c *Claims) IsVessel() bool {
	return c.HasRole(RoleVessel)
}

// AllowsResource reports whether the token may touch the given entity. An
// unscoped token allows everything.
func (c *Claims) AllowsResource(id string) bool {
	if len(c.Resources) == 0 {
		return true
	}
	return slices.Contains(c.Resources, id)
}
