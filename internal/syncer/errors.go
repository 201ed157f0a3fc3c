package syncer

import (
	"errors"
	"fmt"
)

// ErrMissingPersisted indicates that the persisted collection was not
// loaded with the parent record. It is a caller bug, never retried.
var ErrMissingPersisted = errors.New("persisted collection missing")

// PreconditionError reports a sync request that cannot be attempted.
// It is returned before any network call.
type PreconditionError struct {
	Resource string
	Field    string
	Err      error
}

// Error implements the error interface.
func (e *PreconditionError) Error() string {
	return fmt.Sprintf("sync %s: %s: %v", e.Resource, e.Field, e.Err)
}

// Unwrap returns the underlying sentinel.
func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// IsPrecondition reports whether err is a precondition violation.
// Uses errors.As to handle wrapped errors.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}
