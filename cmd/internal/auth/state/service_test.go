package state

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"keel/cmd/identity"
	"keel/cmd/internal/auth/provider"
	"keel/cmd/security/password"
)

// recordingNotifier captures user-facing messages.
type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (n *recordingNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func (n *recordingNotifier) errorCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errors)
}

func (n *recordingNotifier) lastError() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.errors) == 0 {
		return ""
	}
	return n.errors[len(n.errors)-1]
}

// scriptedSignIn overrides sign-in with a fixed error.
type scriptedSignIn struct {
	*fakeSessions
	err error
}

func (s *scriptedSignIn) SignInWithPassword(ctx context.Context, email, credential string) (identity.Account, error) {
	return identity.Account{}, s.err
}

// recordingSignup captures the secret passed to SignUp.
type recordingSignup struct {
	*fakeSessions

	mu      sync.Mutex
	secrets []string
	fail    error
}

func (r *recordingSignup) SignUp(ctx context.Context, email, credential string) (identity.Account, error) {
	r.mu.Lock()
	r.secrets = append(r.secrets, credential)
	fail := r.fail
	r.mu.Unlock()
	if fail != nil {
		return identity.Account{}, fail
	}
	id, err := identity.NewID(time.Now())
	if err != nil {
		return identity.Account{}, err
	}
	return identity.Account{ID: id, Email: email}, nil
}

func (r *recordingSignup) lastSecret() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.secrets) == 0 {
		return ""
	}
	return r.secrets[len(r.secrets)-1]
}

type serviceHarness struct {
	service  *Service
	store    *Store
	sessions *recordingSignup
	profiles identity.ProfileStore
	notify   *recordingNotifier
	loader   *DirectoryLoader
}

func newServiceHarness(t *testing.T) *serviceHarness {
	t.Helper()

	store := NewStore()
	profiles := identity.NewInMemoryProfileStore()
	sessions := &recordingSignup{fakeSessions: newFakeSessions()}
	notify := &recordingNotifier{}
	metrics := NewMetrics(nil)
	loader := NewDirectoryLoader(discardLog(), store, profiles, metrics)
	return &serviceHarness{
		service:  NewService(discardLog(), sessions, profiles, loader, notify, metrics),
		store:    store,
		sessions: sessions,
		profiles: profiles,
		notify:   notify,
		loader:   loader,
	}
}

func TestService_LoginRejectedLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)
	id := testIdentity("01ARZ3NDEKTSV4RRFFQ69G5FAA", identity.RoleMember)
	h.store.SetCurrent(&id)

	// fakeSessions rejects every credential.
	ok := h.service.Login(context.Background(), "dana@example.com", "wrong")
	if ok {
		t.Fatalf("rejected login reported success")
	}
	if h.notify.errorCount() != 1 {
		t.Fatalf("rejected login must surface one user-facing error")
	}
	snap := h.store.Snapshot()
	if snap.Current == nil || snap.Current.ID != id.ID {
		t.Fatalf("rejected login changed current: %+v", snap.Current)
	}
}

func TestService_LoginFailureMessageReflectsCause(t *testing.T) {
	t.Parallel()

	// fakeSessions rejects with a credential error.
	h := newServiceHarness(t)
	if h.service.Login(context.Background(), "dana@example.com", "wrong") {
		t.Fatalf("rejected login reported success")
	}
	if got := h.notify.lastError(); !strings.Contains(got, "email and password") {
		t.Fatalf("credential failure message = %q", got)
	}

	// An unreachable provider reads as an outage, not a bad password.
	notify := &recordingNotifier{}
	metrics := NewMetrics(nil)
	sessions := &scriptedSignIn{
		fakeSessions: newFakeSessions(),
		err:          identity.OpError{Op: "provider", Kind: identity.ErrTransport, Msg: "store down"},
	}
	profiles := identity.NewInMemoryProfileStore()
	svc := NewService(discardLog(), sessions, profiles, NewDirectoryLoader(discardLog(), NewStore(), profiles, metrics), notify, metrics)

	if svc.Login(context.Background(), "dana@example.com", "a strong password") {
		t.Fatalf("transport failure reported success")
	}
	if got := notify.lastError(); !strings.Contains(got, "unavailable") {
		t.Fatalf("transport failure message = %q", got)
	}
}

func TestService_LoginAcceptedDoesNotWriteState(t *testing.T) {
	t.Parallel()

	store := NewStore()
	profiles := identity.NewInMemoryProfileStore()
	creds := provider.NewInMemoryCredentialStore()
	pw := password.Config{
		Params: password.Argon2idParams{MemoryKiB: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		Policy: password.Policy{MinLength: 8, MaxLength: 256},
	}
	local := provider.NewLocal(discardLog(), creds, pw)
	if _, err := local.SignUp(context.Background(), "dana@example.com", "a strong password"); err != nil {
		t.Fatalf("sign up: %v", err)
	}

	notify := &recordingNotifier{}
	metrics := NewMetrics(nil)
	loader := NewDirectoryLoader(discardLog(), store, profiles, metrics)
	svc := NewService(discardLog(), local, profiles, loader, notify, metrics)

	if !svc.Login(context.Background(), "dana@example.com", "a strong password") {
		t.Fatalf("valid credential rejected")
	}

	// Resolution belongs to the lifecycle subscriber; the service itself must
	// not have touched the store.
	snap := store.Snapshot()
	if snap.Current != nil || !snap.Loading {
		t.Fatalf("login wrote state directly: %+v", snap)
	}
}

func TestService_CreateIdentitySuppliedPassword(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)

	created, err := h.service.CreateIdentity(context.Background(), identity.Draft{
		Email: "New.Hire@Example.com",
		Role:  identity.RoleManager,
	}, "chosen secret phrase")
	if err != nil {
		t.Fatalf("create identity: %v", err)
	}

	if got := h.sessions.lastSecret(); got != "chosen secret phrase" {
		t.Fatalf("supplied password not used, got %q", got)
	}
	if created.Email != "new.hire@example.com" {
		t.Fatalf("email not normalized: %q", created.Email)
	}
	if created.Name != "new.hire" {
		t.Fatalf("name not defaulted from email local part: %q", created.Name)
	}
	if created.Role != identity.RoleManager {
		t.Fatalf("role not honored: %q", created.Role)
	}

	// The profile is persisted and the directory refreshed to include it.
	if got := h.store.Snapshot().Directory; len(got) != 1 || got[0].ID != created.ID {
		t.Fatalf("directory not refreshed with the new identity: %v", got)
	}
}

func TestService_CreateIdentityGeneratesPassword(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)

	_, err := h.service.CreateIdentity(context.Background(), identity.Draft{Email: "gen@example.com"}, "")
	if err != nil {
		t.Fatalf("create identity: %v", err)
	}

	secret := h.sessions.lastSecret()
	if secret == "" || secret == fallbackSecret {
		t.Fatalf("expected a generated password, got %q", secret)
	}
	if len(secret) < 16 {
		t.Fatalf("generated password suspiciously short: %d chars", len(secret))
	}
}

func TestService_CreateIdentityDefaultsRole(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)

	created, err := h.service.CreateIdentity(context.Background(), identity.Draft{Email: "plain@example.com"}, "a strong password")
	if err != nil {
		t.Fatalf("create identity: %v", err)
	}
	if created.Role != identity.RoleMember {
		t.Fatalf("role must default to member, got %q", created.Role)
	}
}

func TestService_CreateIdentityRequiresEmail(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)

	_, err := h.service.CreateIdentity(context.Background(), identity.Draft{Email: "   "}, "a strong password")
	if !identity.IsInvalidInput(err) {
		t.Fatalf("expected invalid-input kind, got: %v", err)
	}
	if got := h.sessions.lastSecret(); got != "" {
		t.Fatalf("signup must not run without an email")
	}
}

func TestService_CreateIdentitySignupFailure(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)
	h.sessions.fail = identity.OpError{Op: "provider.SignUp", Kind: identity.ErrCreation, Msg: "duplicate email"}

	_, err := h.service.CreateIdentity(context.Background(), identity.Draft{Email: "dup@example.com"}, "a strong password")
	if err == nil {
		t.Fatalf("expected signup failure to propagate")
	}
	if !identity.IsCreation(err) {
		t.Fatalf("cause must stay visible through the wrap, got: %v", err)
	}
	if h.notify.errorCount() != 1 {
		t.Fatalf("signup failure must surface one user-facing error")
	}

	// No partial profile.
	all, listErr := h.profiles.ListAll(context.Background())
	if listErr != nil {
		t.Fatalf("list: %v", listErr)
	}
	if len(all) != 0 {
		t.Fatalf("profile written despite signup failure: %v", all)
	}
}

func TestService_CreateIdentityProfileFailure(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)

	// Seed a profile whose email will collide with the new insert.
	if _, err := h.profiles.Insert(context.Background(), identity.Profile{
		ID:    "01ARZ3NDEKTSV4RRFFQ69G5FAA",
		Email: "taken@example.com",
		Name:  "taken",
		Role:  identity.RoleMember,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := h.service.CreateIdentity(context.Background(), identity.Draft{Email: "taken@example.com"}, "a strong password")
	if err == nil {
		t.Fatalf("expected profile insert failure to propagate")
	}
	if !strings.Contains(err.Error(), "profile") {
		t.Fatalf("error should name the failing step, got: %v", err)
	}
	if h.notify.errorCount() != 1 {
		t.Fatalf("profile failure must surface one user-facing error")
	}

	// The account exists without a profile; the directory stays as it was.
	if got := h.store.Snapshot().Directory; len(got) != 0 {
		t.Fatalf("failed creation must not refresh the directory: %v", got)
	}
}
