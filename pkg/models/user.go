package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"
)

// User is a registered principal. Vessels authenticate as users too,
// carrying the "vessel" role and a user id equal to their vessel id.
type User struct {
	ID           string   `bson:"_id" json:"id"`
	Name         string   `bson:"name" json:"name"`
	UniqueName   string   `bson:"unique_name" json:"unique_name"`
	PasswordHash string   `bson:"pw_hash" json:"-"`
	Roles        []string `bson:"roles" json:"roles"`
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HashPassword derives the stored password hash. The hash is salted with
// the user id, so identical passwords on different accounts produce
// different digests.
func HashPassword(password, userID string) string {
	sum := sha256.Sum256([]byte(password + userID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// CheckPassword verifies a login attempt against the stored hash.
func CheckPassword(u *User, password string) bool {
	return u.PasswordHash == HashPassword(password, u.ID)
}

// AuthorizationCode is an opaque credential exchangeable for a token.
// Single-use codes back the refresh flow and are deleted on redemption;
// reusable ones are minted for vessels, which redeem the same code on every
// boot. Codes may also be scoped to a set of resources, narrowing what the
// minted token can touch.
type AuthorizationCode struct {
	ID         string    `bson:"_id" json:"id"`
	UserID     string    `bson:"user_id" json:"user_id"`
	SingleUse  bool      `bson:"single_use" json:"single_use"`
	ValidUntil time.Time `bson:"valid_until" json:"valid_until"`
	Resources  []string  `bson:"resources,omitempty" json:"resources,omitempty"`
}

// Expired reports whether the code is past its validity at the given time.
func (c *AuthorizationCode) Expired(now time.Time) bool {
	return now.After(c.ValidUntil)
}

const authCodeBytes = 256

// GenerateAuthCode returns a fresh random authorization code string.
func GenerateAuthCode() (string, error) {
	raw := make([]byte, authCodeBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating authorization code: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
