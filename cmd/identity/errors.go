package identity

import (
	"errors"
	"fmt"
)

// OpError is a typed operation error with a stable Op + Kind contract.
// Kind must be one of the sentinel kinds; Msg may add human-readable context
// but must never include secrets.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e OpError) Unwrap() error { return e.Kind }

// NotFoundError reports a missing profile row for a specific id.
type NotFoundError struct {
	Op string
	ID string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s: %v: profile %s", e.Op, ErrNotFound, e.ID)
}

func (e NotFoundError) Unwrap() error { return ErrNotFound }

// ResolutionError reports that a profile could not be resolved: the fetch
// failed for a reason other than not-found, or the create fallback failed.
// Callers treat it as "no identity available", never as a crash.
type ResolutionError struct {
	UserID string
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve identity %s: %v", e.UserID, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// IsNotFound reports whether err represents ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsTransport reports whether err represents ErrTransport.
func IsTransport(err error) bool { return errors.Is(err, ErrTransport) }

// IsCreation reports whether err represents ErrCreation.
func IsCreation(err error) bool { return errors.Is(err, ErrCreation) }

// IsCredential reports whether err represents ErrCredential.
func IsCredential(err error) bool { return errors.Is(err, ErrCredential) }

// IsInvalidInput reports whether err represents ErrInvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }
