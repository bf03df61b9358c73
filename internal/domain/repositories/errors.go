package repositories

import "errors"

// Domain-specific repository errors
var (
	// ErrSessionExpired is returned when the remote rejects the access token
	ErrSessionExpired = errors.New("session expired or invalid")

	// ErrRemoteUnavailable is returned when the remote could not be reached
	ErrRemoteUnavailable = errors.New("remote service unavailable")
)
