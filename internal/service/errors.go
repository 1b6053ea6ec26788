package service

import "errors"

// Sentinel errors for the request lifecycle. Handlers map these onto HTTP
// status codes with errors.Is; anything unrecognized is a 500.
var (
	ErrNotFound          = errors.New("request not found")
	ErrOwnerNotFound     = errors.New("user not found")
	ErrForbidden         = errors.New("access denied")
	ErrInvalidState      = errors.New("request is no longer pending")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrValidation        = errors.New("validation failed")
)
