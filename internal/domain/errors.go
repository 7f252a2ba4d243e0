package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrValidation   = errors.New("validation failed")

	// ErrInvalidCredentials is returned for both unknown emails and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidOrExpired covers verification codes and reset tokens.
	ErrInvalidOrExpired = errors.New("invalid or expired token")
	// ErrConcurrentUpdate means a conditional write lost against another writer.
	ErrConcurrentUpdate = errors.New("concurrent update")
	// ErrUpstream wraps failures of external collaborators (AI service, identity provider).
	ErrUpstream = errors.New("upstream service error")
)
