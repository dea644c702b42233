package state

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"keel/cmd/identity"
	"keel/cmd/internal/auth/provider"
	"keel/cmd/security/password"
)

// fallbackSecret is used only when the operator supplied no password and
// random generation failed. Its use is logged loudly; an account created with
// it must have its password rotated.
const fallbackSecret = "TempPass123!"

// Refresher triggers a directory reload. *DirectoryLoader satisfies it.
type Refresher interface {
	Refresh(ctx context.Context)
}

// Service is the mutation surface: login, logout, identity creation. It never
// writes identity state itself; every state change it causes travels through
// the provider's lifecycle events into the manager, which keeps the store's
// single-writer discipline intact.
type Service struct {
	log      *slog.Logger
	sessions provider.SessionProvider
	profiles identity.ProfileStore
	dir      Refresher
	notify   Notifier
	metrics  *Metrics
}

func NewService(log *slog.Logger, sessions provider.SessionProvider, profiles identity.ProfileStore, dir Refresher, notify Notifier, metrics *Metrics) *Service {
	return &Service{
		log:      log,
		sessions: sessions,
		profiles: profiles,
		dir:      dir,
		notify:   notify,
		metrics:  metrics,
	}
}

// Login attempts a password sign-in. It reports whether the credential was
// accepted; the resulting identity appears asynchronously via the lifecycle
// subscriber. On rejection the current state is untouched.
func (s *Service) Login(ctx context.Context, email, credential string) bool {
	_, err := s.sessions.SignInWithPassword(ctx, email, credential)
	if err != nil {
		s.log.Warn("login.rejected", "email", identity.NormalizeEmail(email), "err", err)
		s.metrics.Logins.WithLabelValues("rejected").Inc()
		s.notify.Error(loginFailureMessage(err))
		return false
	}
	s.metrics.Logins.WithLabelValues("accepted").Inc()
	return true
}

// loginFailureMessage picks the user-facing text from the failure cause: a
// rejected credential is the user's to fix, anything else is not.
func loginFailureMessage(err error) string {
	if identity.IsCredential(err) || identity.IsInvalidInput(err) {
		return "Sign-in failed. Check your email and password."
	}
	return "Sign-in failed. The service is unavailable, try again shortly."
}

// Logout ends the current session. State clearing happens in the manager when
// the signed-out event arrives.
func (s *Service) Logout(ctx context.Context) {
	if err := s.sessions.SignOut(ctx); err != nil {
		s.log.Error("logout.failed", "err", err)
		s.notify.Error("Sign-out failed.")
	}
}

// CreateIdentity provisions a new account and its profile. The password is,
// in order of preference: the supplied one, a generated random one, or the
// fixed fallback (logged as insecure).
//
// The two writes are sequential and not transactional: a profile insert
// failure leaves an account without a profile. That account self-heals on its
// first sign-in, when the resolver synthesizes a member profile for it.
func (s *Service) CreateIdentity(ctx context.Context, draft identity.Draft, secret string) (identity.Identity, error) {
	email := identity.NormalizeEmail(draft.Email)
	if email == "" {
		return identity.Identity{}, identity.OpError{Op: "state.create_identity", Kind: identity.ErrInvalidInput, Msg: "email is required"}
	}

	if secret == "" {
		generated, err := password.Generate(18)
		if err != nil {
			s.log.Error("create_identity.insecure_fallback_password", "email", email, "err", err)
			secret = fallbackSecret
		} else {
			secret = generated
		}
	}

	acct, err := s.sessions.SignUp(ctx, email, secret)
	if err != nil {
		s.log.Error("create_identity.signup_failed", "email", email, "err", err)
		s.notify.Error("Could not create the account.")
		return identity.Identity{}, fmt.Errorf("create identity: %w", err)
	}

	role := draft.Role
	if role == "" {
		role = identity.RoleMember
	}
	name := draft.Name
	if name == "" {
		name = identity.DefaultName(email)
	}

	inserted, err := s.profiles.Insert(ctx, identity.Profile{
		ID:        acct.ID,
		Email:     email,
		Name:      name,
		Role:      role,
		Username:  draft.Username,
		TeamID:    draft.TeamID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		s.log.Error("create_identity.profile_failed", "user_id", acct.ID, "err", err)
		s.notify.Error("Account created, but the profile could not be saved.")
		return identity.Identity{}, fmt.Errorf("create identity profile: %w", err)
	}

	s.log.Info("create_identity.done", "user_id", inserted.ID, "role", inserted.Role)
	s.notify.Success("Identity created.")
	s.dir.Refresh(ctx)
	return inserted.Identity(), nil
}
