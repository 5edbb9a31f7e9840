package auth

import "errors"

var (
	ErrValidation         = errors.New("all fields are required")
	ErrDuplicate          = errors.New("user already exists")
	ErrCreation           = errors.New("user could not be created")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrPasswordInvalid    = errors.New("password must be between 1 and 72 bytes")

	// ErrTokenInvalid covers every token failure: bad signature, malformed
	// structure, wrong token class and expiry all collapse to it.
	ErrTokenInvalid = errors.New("invalid token")

	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNoSession       = errors.New("no active session")
)
