package services

import "errors"

// Service errors
var (
	// ErrInvalidStage is returned for a stage outside 0..3.
	ErrInvalidStage = errors.New("invalid stage")

	// ErrStoreUnavailable is returned when the store cannot be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
)
