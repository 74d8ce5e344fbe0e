package domain

import "fmt"

// ValidationError marks a malformed client payload. Reported via the error
// event, never by dropping the connection.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

func Invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// AuthorizationError marks an attempt to act on a server, channel, or voice
// room the caller is not a member of. Reported, no state change.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string { return "authorization: " + e.Reason }

func Unauthorized(format string, args ...any) *AuthorizationError {
	return &AuthorizationError{Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError marks a reference to a channel or user that no longer exists.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}
