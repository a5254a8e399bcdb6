package otter

import "errors"

// Two kinds of failure cross this package's boundary. Domain errors (missing
// identity, transport failures, precondition violations) are returned as Go
// errors. Remote non-2xx statuses are not errors at all: they come back as a
// normal Response and callers inspect StatusCode.

// ErrNotAuthenticated is returned by identity-gated operations before any
// network call is made when the client has no user id.
var ErrNotAuthenticated = errors.New("not authenticated: call Login first")

// ErrNotImplemented marks operations that would need the realtime streaming
// channel, which this client does not open.
var ErrNotImplemented = errors.New("realtime transcription is not implemented")

// AuthError is a transport-level failure during credential exchange.
// A 4xx/5xx answer from the remote login endpoint is not an AuthError; it
// surfaces as a Response with that status.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return "login failed: " + e.Err.Error() }
func (e *AuthError) Unwrap() error { return e.Err }

// APIError names the operation whose transport call failed.
type APIError struct {
	Op  string
	Err error
}

func (e *APIError) Error() string { return e.Op + " failed: " + e.Err.Error() }
func (e *APIError) Unwrap() error { return e.Err }
