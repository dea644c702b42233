package identity

import (
	"context"
	"time"
)

// Profile mirrors the profiles row: the persisted application record keyed by
// account id.
type Profile struct {
	ID        string
	Email     string
	Name      string
	Role      Role
	Username  *string
	TeamID    *string
	CreatedAt time.Time
}

// Identity maps the stored record to its application-facing view.
func (p Profile) Identity() Identity {
	return Identity{
		ID:       p.ID,
		Email:    p.Email,
		Name:     p.Name,
		Role:     p.Role,
		Username: p.Username,
		TeamID:   p.TeamID,
	}
}

// ProfileStore is the profile persistence boundary.
type ProfileStore interface {
	// FetchByID loads a profile by account id. A missing row is reported as
	// an ErrNotFound kind, distinct from transport failures.
	FetchByID(ctx context.Context, id string) (Profile, error)

	// Insert persists a new profile and returns the stored record.
	// A duplicate id or email is reported as an ErrCreation kind.
	Insert(ctx context.Context, p Profile) (Profile, error)

	// ListAll returns every profile ordered by creation time descending.
	ListAll(ctx context.Context) ([]Profile, error)
}
