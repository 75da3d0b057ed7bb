package translate

import "errors"

var (
	// ErrInvalidGeometry is returned when geometry conversion fails.
	ErrInvalidGeometry = errors.New("invalid geometry")

	// ErrInvalidDateTime is returned when datetime parsing fails.
	ErrInvalidDateTime = errors.New("invalid datetime format")

	// ErrMissingStartTime is returned for images without an acquisition time.
	ErrMissingStartTime = errors.New("image has no start time")
)
