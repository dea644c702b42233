package provider

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"keel/cmd/identity"
	"keel/cmd/security/password"
)

// Local is a credential-backed SessionProvider.
//
// It holds one current-session slot (the provider authenticates "this
// process" the way a browser client holds one session) and serializes event
// emission so subscribers observe sign-ins and sign-outs in the order the
// provider performed them.
type Local struct {
	log   *slog.Logger
	creds CredentialStore
	pw    password.Config
	bc    *Broadcaster

	// emitMu orders the state-change + emit pairs. mu guards current only and
	// is never held across Publish: a publish can block on a slow subscriber
	// while that subscriber's resolution work needs GetCurrentAccount, which
	// takes mu.
	emitMu  sync.Mutex
	mu      sync.Mutex
	current *Session
}

// NewLocal constructs a Local provider.
func NewLocal(log *slog.Logger, creds CredentialStore, pw password.Config) *Local {
	return &Local{
		log:   log,
		creds: creds,
		pw:    pw,
		bc:    NewBroadcaster(),
	}
}

// GetCurrentSession returns the current session, or (nil, nil) when signed
// out.
func (p *Local) GetCurrentSession(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return nil, nil
	}
	s := *p.current
	return &s, nil
}

// GetCurrentAccount returns the account behind the current session.
func (p *Local) GetCurrentAccount(ctx context.Context) (identity.Account, error) {
	const op = "provider.GetCurrentAccount"

	if err := ctx.Err(); err != nil {
		return identity.Account{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return identity.Account{}, identity.OpError{Op: op, Kind: identity.ErrCredential, Msg: "no authenticated account"}
	}
	return p.current.Account, nil
}

// SignInWithPassword validates a credential and makes the account's session
// current.
func (p *Local) SignInWithPassword(ctx context.Context, email, credential string) (identity.Account, error) {
	const op = "provider.SignInWithPassword"

	emailNorm := identity.NormalizeEmail(email)
	if emailNorm == "" {
		return identity.Account{}, identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: "empty email"}
	}

	cred, err := p.creds.FetchByEmail(ctx, emailNorm)
	if err != nil {
		if identity.IsNotFound(err) {
			// Indistinguishable from a wrong password to avoid account probing.
			return identity.Account{}, identity.OpError{Op: op, Kind: identity.ErrCredential, Msg: "invalid email or password"}
		}
		return identity.Account{}, err
	}

	ok, err := p.pw.Verify(cred.PasswordHash, credential)
	if err != nil || !ok {
		return identity.Account{}, identity.OpError{Op: op, Kind: identity.ErrCredential, Msg: "invalid email or password"}
	}

	acct := cred.Account

	p.emitMu.Lock()
	p.mu.Lock()
	p.current = &Session{Account: acct, IssuedAt: time.Now().UTC()}
	p.mu.Unlock()
	p.bc.Publish(Event{Kind: EventSignedIn, Account: acct})
	p.emitMu.Unlock()

	p.log.Info("provider.signed_in", "account_id", acct.ID)
	return acct, nil
}

// SignOut ends the current session. Signing out while already signed out
// still emits the event, matching hosted providers.
func (p *Local) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.emitMu.Lock()
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
	p.bc.Publish(Event{Kind: EventSignedOut})
	p.emitMu.Unlock()

	p.log.Info("provider.signed_out")
	return nil
}

// SignUp creates a new account with a provider-assigned ULID. The current
// session is left untouched, so an operator creating accounts stays signed
// in.
func (p *Local) SignUp(ctx context.Context, email, credential string) (identity.Account, error) {
	const op = "provider.SignUp"

	email = strings.TrimSpace(email)
	if identity.NormalizeEmail(email) == "" {
		return identity.Account{}, identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: "empty email"}
	}

	hash, err := p.pw.Hash(credential)
	if err != nil {
		return identity.Account{}, identity.OpError{Op: op, Kind: identity.ErrCredential, Msg: err.Error()}
	}

	now := time.Now().UTC()
	id, err := identity.NewID(now)
	if err != nil {
		return identity.Account{}, err
	}

	acct := identity.Account{ID: id, Email: email}
	if err := p.creds.Create(ctx, Credential{Account: acct, PasswordHash: hash, CreatedAt: now}); err != nil {
		return identity.Account{}, err
	}

	p.log.Info("provider.signed_up", "account_id", acct.ID)
	return acct, nil
}

// Subscribe returns a cancellable subscription to the lifecycle event
// stream.
func (p *Local) Subscribe() *Subscription {
	return p.bc.Subscribe()
}
