package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateEmail occurs when an email address is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrSessionNotFound occurs when a bearer token resolves to no session.
	ErrSessionNotFound = errors.New("session not found")
)
