// Package provider defines Keel's session provider boundary: the external
// authentication authority that issues sessions, validates credentials and
// emits session lifecycle events.
//
// The rest of the system only ever talks to the SessionProvider interface;
// Local is a credential-backed implementation for deployments that do not
// delegate authentication to a hosted identity service.
package provider

import (
	"context"
	"time"

	"keel/cmd/identity"
)

// EventKind enumerates session lifecycle notifications.
type EventKind string

const (
	// EventSignedIn is emitted when a credential is accepted and a session
	// becomes current.
	EventSignedIn EventKind = "signed_in"
	// EventSignedOut is emitted when the current session ends.
	EventSignedOut EventKind = "signed_out"
	// EventTokenRefreshed is emitted when a session is refreshed in place.
	// Subscribers that only track identity may ignore it.
	EventTokenRefreshed EventKind = "token_refreshed"
)

// Event is a session lifecycle notification. Account is zero for
// EventSignedOut.
type Event struct {
	Kind    EventKind
	Account identity.Account
}

// Session is an externally issued proof of authentication for an account,
// valid until expiry or explicit sign-out.
type Session struct {
	Account  identity.Account
	IssuedAt time.Time
}

// SessionProvider is the authentication boundary consumed by the bootstrap
// manager, the resolver and the mutation service.
type SessionProvider interface {
	identity.AccountReader

	// GetCurrentSession returns the current session, or (nil, nil) when no
	// session exists. A non-nil error means the provider was unreachable.
	GetCurrentSession(ctx context.Context) (*Session, error)

	// SignInWithPassword validates a credential and, on success, makes a
	// session for the account current and emits EventSignedIn.
	// A rejected credential is an identity.ErrCredential kind.
	SignInWithPassword(ctx context.Context, email, credential string) (identity.Account, error)

	// SignOut ends the current session and emits EventSignedOut.
	SignOut(ctx context.Context) error

	// SignUp creates a new account with a provider-assigned id. It does not
	// change the current session.
	SignUp(ctx context.Context, email, credential string) (identity.Account, error)

	// Subscribe returns a cancellable subscription to the lifecycle event
	// stream. Events are delivered in emission order and are never dropped
	// while the subscription is live.
	Subscribe() *Subscription
}
