package dataset

import "errors"

// Error kinds shared by the store, the sync engine and the editor. Call sites
// wrap them with context; match with errors.Is.
var (
	ErrDuplicateName       = errors.New("duplicate name")
	ErrNotFound            = errors.New("not found")
	ErrIndexOutOfRange     = errors.New("index out of range")
	ErrValidationFailed    = errors.New("validation failed")
	ErrRemoteRequestFailed = errors.New("remote request failed")

	// ErrConfirmationRequired is returned when a non-empty category is deleted
	// without the caller confirming it.
	ErrConfirmationRequired = errors.New("confirmation required")
)
