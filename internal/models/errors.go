package models

import "errors"

var (
	// ErrInvalidTarget is returned when a submitted target is empty, malformed
	// or outside the configured scope.
	ErrInvalidTarget = errors.New("invalid target")

	// ErrInvalidPreset is returned when a submission names an unknown preset.
	ErrInvalidPreset = errors.New("invalid preset")

	// ErrNotFound is returned for unknown job or result identifiers.
	ErrNotFound = errors.New("not found")

	// ErrNotReady is returned when a result is requested before its job completed.
	ErrNotReady = errors.New("result not ready")

	// ErrInvalidTransition is returned when a requested state change is not
	// allowed from the job's current state.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrStateConflict is returned by stores when a compare-and-swap finds a
	// state other than the expected one.
	ErrStateConflict = errors.New("job state conflict")
)
