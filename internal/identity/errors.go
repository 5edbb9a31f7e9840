package identity

import "errors"

var (
	ErrNotFound        = errors.New("user not found")
	ErrDuplicateEmail  = errors.New("user already exists")
	ErrInvalidID       = errors.New("invalid user id")
	ErrFieldNotAllowed = errors.New("field cannot be updated")
	ErrInvalidField    = errors.New("invalid field value")
	ErrEmptyPatch      = errors.New("no fields to update")
	ErrForbidden       = errors.New("forbidden")
)
