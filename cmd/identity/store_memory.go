package identity

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// InMemoryProfileStore is a dev/test fallback used when no database is
// configured. It mirrors the Postgres store's contract, including the
// not-found and duplicate-email error kinds.
type InMemoryProfileStore struct {
	mu      sync.Mutex
	byID    map[string]Profile
	byEmail map[string]string // normalized email -> id
}

// NewInMemoryProfileStore constructs an empty in-memory ProfileStore.
func NewInMemoryProfileStore() *InMemoryProfileStore {
	return &InMemoryProfileStore{
		byID:    make(map[string]Profile),
		byEmail: make(map[string]string),
	}
}

// Close closes the store (noop for in-memory).
func (s *InMemoryProfileStore) Close() error { return nil }

// FetchByID loads a profile by account id.
func (s *InMemoryProfileStore) FetchByID(ctx context.Context, id string) (Profile, error) {
	const op = "identity.FetchByID"

	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return Profile{}, NotFoundError{Op: op, ID: id}
	}
	return p, nil
}

// Insert persists a new profile.
func (s *InMemoryProfileStore) Insert(ctx context.Context, p Profile) (Profile, error) {
	const op = "identity.Insert"

	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}
	if strings.TrimSpace(p.ID) == "" {
		return Profile{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty profile id"}
	}
	if !p.Role.Valid() {
		return Profile{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "unknown role"}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	emailNorm := NormalizeEmail(p.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[p.ID]; exists {
		return Profile{}, OpError{Op: op, Kind: ErrCreation, Msg: "duplicate id"}
	}
	if emailNorm != "" {
		if _, exists := s.byEmail[emailNorm]; exists {
			return Profile{}, OpError{Op: op, Kind: ErrCreation, Msg: "duplicate email"}
		}
	}

	s.byID[p.ID] = p
	if emailNorm != "" {
		s.byEmail[emailNorm] = p.ID
	}
	return p, nil
}

// ListAll returns every profile, newest first.
func (s *InMemoryProfileStore) ListAll(ctx context.Context) ([]Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	out := make([]Profile, 0, len(s.byID))
	for _, p := range s.byID {
		out = append(out, p)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		// ULIDs sort by creation time, so id order is a stable tie-break.
		return out[i].ID > out[j].ID
	})
	return out, nil
}
