package provider

import (
	"context"
	"sync"
	"time"

	"keel/cmd/identity"
)

// InMemoryCredentialStore is a dev/test fallback used when no database is
// configured.
type InMemoryCredentialStore struct {
	mu      sync.Mutex
	byEmail map[string]Credential
}

// NewInMemoryCredentialStore constructs an empty in-memory CredentialStore.
func NewInMemoryCredentialStore() *InMemoryCredentialStore {
	return &InMemoryCredentialStore{byEmail: make(map[string]Credential)}
}

// Create persists a new credential record.
func (s *InMemoryCredentialStore) Create(ctx context.Context, c Credential) error {
	const op = "provider.CreateCredential"

	if err := ctx.Err(); err != nil {
		return err
	}
	emailNorm := identity.NormalizeEmail(c.Account.Email)
	if emailNorm == "" || c.Account.ID == "" {
		return identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: "missing id or email"}
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[emailNorm]; exists {
		return identity.OpError{Op: op, Kind: identity.ErrCreation, Msg: "duplicate email"}
	}
	s.byEmail[emailNorm] = c
	return nil
}

// FetchByEmail loads a credential by normalized email.
func (s *InMemoryCredentialStore) FetchByEmail(ctx context.Context, emailNorm string) (Credential, error) {
	const op = "provider.FetchCredential"

	if err := ctx.Err(); err != nil {
		return Credential{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byEmail[emailNorm]
	if !ok {
		return Credential{}, identity.OpError{Op: op, Kind: identity.ErrNotFound, Msg: "unknown email"}
	}
	return c, nil
}
