package identity

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// AccountReader supplies the authenticated account for the create fallback.
// It is a narrow view of the session provider.
type AccountReader interface {
	GetCurrentAccount(ctx context.Context) (Account, error)
}

// Resolver maps an authenticated account id to its application Identity,
// creating the backing profile on first sight.
//
// Concurrent resolutions for the same id are coalesced into one in-flight
// call, so the bootstrap path and the lifecycle subscriber can never race the
// create fallback into a duplicate insert.
type Resolver struct {
	log      *slog.Logger
	profiles ProfileStore
	accounts AccountReader

	group singleflight.Group
}

// NewResolver constructs a Resolver. All arguments are required.
func NewResolver(log *slog.Logger, profiles ProfileStore, accounts AccountReader) *Resolver {
	return &Resolver{log: log, profiles: profiles, accounts: accounts}
}

// Resolve fetches the profile for userID, or creates a default member profile
// when none exists yet. It fails with a *ResolutionError only when both the
// fetch and the create fallback fail.
//
// Calls for the same id that arrive while one is in flight share its result;
// the first caller's context governs the shared call.
func (r *Resolver) Resolve(ctx context.Context, userID string) (Identity, error) {
	const op = "identity.Resolve"

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Identity{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty user id"}
	}

	v, err, _ := r.group.Do(userID, func() (any, error) {
		return r.resolve(ctx, userID)
	})
	if err != nil {
		return Identity{}, err
	}
	return v.(Identity), nil
}

func (r *Resolver) resolve(ctx context.Context, userID string) (Identity, error) {
	p, err := r.profiles.FetchByID(ctx, userID)
	if err == nil {
		return p.Identity(), nil
	}
	if !IsNotFound(err) {
		return Identity{}, &ResolutionError{UserID: userID, Err: err}
	}

	// First sight of this account: synthesize a member profile. The account
	// email comes from the provider; a missing email still yields a usable
	// placeholder name.
	acct, err := r.accounts.GetCurrentAccount(ctx)
	if err != nil {
		return Identity{}, &ResolutionError{UserID: userID, Err: err}
	}

	created, err := r.profiles.Insert(ctx, Profile{
		ID:        userID,
		Email:     acct.Email,
		Name:      DefaultName(acct.Email),
		Role:      RoleMember,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return Identity{}, &ResolutionError{UserID: userID, Err: err}
	}

	r.log.Info("profile.created", "user_id", userID, "role", string(created.Role))

	// Return the inserted record directly; a re-fetch would be redundant.
	return created.Identity(), nil
}
