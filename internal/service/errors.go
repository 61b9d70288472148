package service

import "errors"

// Sentinel errors translated to HTTP statuses at the handler layer.
var (
	ErrNotFound  = errors.New("resource not found")
	ErrForbidden = errors.New("operation not allowed for this user")
	ErrConflict  = errors.New("operation conflicts with current state")
	ErrInvalid   = errors.New("invalid request")
)
