package provider

import (
	"context"
	"time"

	"keel/cmd/identity"
)

// Credential is a stored account credential record. PasswordHash is an
// encoded Argon2id string; the plain credential is never stored.
type Credential struct {
	Account      identity.Account
	PasswordHash string
	CreatedAt    time.Time
}

// CredentialStore is the persistence boundary for the local provider's
// accounts.
type CredentialStore interface {
	// Create persists a new credential record. A duplicate email is an
	// identity.ErrCreation kind.
	Create(ctx context.Context, c Credential) error

	// FetchByEmail loads a credential by normalized email. A missing record
	// is an identity.ErrNotFound kind.
	FetchByEmail(ctx context.Context, emailNorm string) (Credential, error)
}
