package identity

import "errors"

// Sentinel error kinds (stable for errors.Is and for mapping to user-facing
// failure messages).
var (
	// ErrInvalidInput marks a malformed request (empty id, bad role, ...).
	ErrInvalidInput = errors.New("invalid_input")
	// ErrNotFound marks "no profile row for this id". It is recovered inside
	// the Resolver by the create fallback and never escapes it.
	ErrNotFound = errors.New("not_found")
	// ErrTransport marks an unreachable session provider or profile store.
	ErrTransport = errors.New("transport")
	// ErrCreation marks a failed profile or account insert, including
	// uniqueness conflicts.
	ErrCreation = errors.New("creation")
	// ErrCredential marks a sign-in or sign-up rejected by the provider.
	ErrCredential = errors.New("credential")
)
