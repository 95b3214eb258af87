package models

import "errors"

// Domain errors. The HTTP layer maps these onto the problem-response
// taxonomy; stores wrap driver errors into them so nothing below the
// handler boundary leaks raw storage errors.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a unique-name collision on registration.
	ErrConflict = errors.New("already exists")

	// ErrPermissionDenied indicates the caller lacks the required
	// permission level.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidInput indicates a malformed body or query.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidPayload indicates a command payload or response failed
	// schema validation.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrAuthMissing indicates no bearer credentials were presented.
	ErrAuthMissing = errors.New("authentication required")

	// ErrAuthInvalid indicates the presented credentials failed
	// signature, issuer or expiry checks.
	ErrAuthInvalid = errors.New("invalid credentials")

	// ErrTokenExpired indicates an authorization code or refresh token
	// is past its validity.
	ErrTokenExpired = errors.New("token expired")
)
