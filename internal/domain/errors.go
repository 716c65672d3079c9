package domain

import "errors"

var (
	// ErrValidation marks malformed caller input.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a missing job, account or campaign entry.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks an operation rejected by the current state.
	ErrConflict = errors.New("conflict")
	// ErrSubmissionRejected marks a bulk submission refused synchronously,
	// before any job was registered.
	ErrSubmissionRejected = errors.New("submission rejected")
)
