package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNoCredentials signals that a stage requires a provider credential
	// that is not configured.
	ErrNoCredentials = errors.New("provider credentials not configured")
)
