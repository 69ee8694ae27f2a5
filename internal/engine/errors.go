package engine

import "errors"

// Domain errors surfaced by the session controller.
var (
	// ErrAttemptSubmitted is returned for any mutation or re-submit after the
	// attempt reached its terminal state. Callers must treat it as a loud
	// failure, not a silent no-op.
	ErrAttemptSubmitted = errors.New("attempt already submitted")

	// ErrNotInProgress is returned when an operation requires an active
	// in-progress session (e.g. answering before Start or during Submitting).
	ErrNotInProgress = errors.New("session is not in progress")
)
