package datasets

import "errors"

// Sentinel errors for the failure classes of the pipeline. Call sites
// wrap these with fmt.Errorf("%w: ...") so errors.Is can classify a
// failure while the message names the violated invariant.
var (
	// ErrConfiguration marks invalid or missing construction inputs:
	// an unset or non-existent data directory, an unsupported channel
	// count, a non-positive batch size or resolution.
	ErrConfiguration = errors.New("invalid dataset configuration")

	// ErrValidation marks data that breaks a pipeline invariant: a
	// class-count mismatch, an image too small to crop, a wrong shape
	// after resizing. Validation failures are fatal for the current
	// call; invalid items are never silently skipped.
	ErrValidation = errors.New("invalid data")

	// ErrIndex marks out-of-range dataset access, a caller bug.
	ErrIndex = errors.New("index out of range")
)
