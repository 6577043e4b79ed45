package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Authentication flow errors
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrInvalidSession      = errors.New("session no longer valid")
	ErrInvalidCode         = errors.New("invalid verification code")
	ErrAuthProviderFailure = errors.New("external auth provider failure")
	ErrAlreadyConnected    = errors.New("external identity already connected")
)
