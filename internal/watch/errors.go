package watch

import "errors"

// Sentinel errors surfaced to command handlers. Validation failures
// are reported to the invoking user; they are never fatal and need no
// operator logging.
var (
	// ErrAlreadyTracked means the (user, url) pair already has a record.
	ErrAlreadyTracked = errors.New("url is already tracked")
	// ErrNotTracked means no record exists for the (user, url) pair.
	ErrNotTracked = errors.New("url is not tracked")
	// ErrInvalidURL means the submitted URL failed validation.
	ErrInvalidURL = errors.New("url must start with http:// or https://")
)
