package engine

import "errors"

var (
	// ErrValidation indicates a validation failure.
	ErrValidation = errors.New("validation failed")

	// ErrRemoteDepot indicates a depot mutation was requested on a remote
	// depot location.
	ErrRemoteDepot = errors.New("operation requires a local depot directory")
)
