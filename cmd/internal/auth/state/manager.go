package state

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"keel/cmd/identity"
	"keel/cmd/internal/auth/provider"
)

// Resolver turns an account id into a full identity, creating the profile on
// first sight. *identity.Resolver satisfies it; tests substitute fakes.
type Resolver interface {
	Resolve(ctx context.Context, userID string) (identity.Identity, error)
}

// Manager owns the store's lifecycle: it runs bootstrap exactly once and then
// follows the provider's lifecycle events until Close.
//
// Every state change is tagged with a generation number taken when the change
// is initiated. A resolution that finishes after a newer event has already
// moved the target account publishes nothing (last event wins). After Close
// the store itself drops writes, so late completions are harmless either way.
type Manager struct {
	log      *slog.Logger
	sessions provider.SessionProvider
	resolver Resolver
	store    *Store
	metrics  *Metrics

	gen atomic.Uint64
	// pubMu serializes the generation check with the store write so that a
	// stale completion cannot land between a newer change's check and write.
	pubMu sync.Mutex

	mu     sync.Mutex
	sub    *provider.Subscription
	cancel context.CancelFunc
	done   chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once
}

func NewManager(log *slog.Logger, sessions provider.SessionProvider, resolver Resolver, store *Store, metrics *Metrics) *Manager {
	return &Manager{
		log:      log,
		sessions: sessions,
		resolver: resolver,
		store:    store,
		metrics:  metrics,
	}
}

// Start claims the bootstrap slot, subscribes to lifecycle events and kicks
// off bootstrap. Only the first caller does any work; the rest return
// immediately. Start does not block on the session read.
func (m *Manager) Start(ctx context.Context) {
	if m.closed.Load() || !m.store.ClaimBootstrap() {
		return
	}

	ctx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	if m.closed.Load() {
		m.mu.Unlock()
		cancel()
		return
	}
	m.cancel = cancel
	m.sub = m.sessions.Subscribe()
	m.done = make(chan struct{})
	sub, done := m.sub, m.done
	m.mu.Unlock()

	go m.loop(ctx, sub, done)
	go m.bootstrap(ctx)
}

// Close tears the manager down: the lifecycle subscription is cancelled, the
// event loop drained, and the store closed so that any still-pending
// resolution cannot write. Safe to call before Start and more than once.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		m.mu.Lock()
		sub, cancel, done := m.sub, m.cancel, m.done
		m.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if sub != nil {
			sub.Cancel()
		}
		if done != nil {
			<-done
		}
		m.store.Close()
	})
}

func (m *Manager) loop(ctx context.Context, sub *provider.Subscription, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case ev := <-sub.C:
			m.handle(ctx, ev)
		}
	}
}

func (m *Manager) bootstrap(ctx context.Context) {
	defer m.store.FinishBootstrap()

	seq := m.gen.Add(1)

	sess, err := m.sessions.GetCurrentSession(ctx)
	if err != nil {
		m.log.Error("bootstrap.session_failed", "err", err)
		m.metrics.Bootstraps.WithLabelValues("failed").Inc()
		m.publish(seq, nil)
		return
	}
	if sess == nil {
		m.log.Debug("bootstrap.anonymous")
		m.metrics.Bootstraps.WithLabelValues("anonymous").Inc()
		m.publish(seq, nil)
		return
	}

	id, err := m.resolver.Resolve(ctx, sess.Account.ID)
	if err != nil {
		m.log.Error("bootstrap.resolve_failed", "user_id", sess.Account.ID, "err", err)
		m.metrics.Bootstraps.WithLabelValues("failed").Inc()
		m.publish(seq, nil)
		return
	}

	m.log.Info("bootstrap.done", "user_id", id.ID, "role", id.Role)
	m.metrics.Bootstraps.WithLabelValues("authenticated").Inc()
	m.publish(seq, &id)
}

// handle processes one lifecycle event. Events arrive and are processed in
// order on the loop goroutine; only the bootstrap goroutine ever runs
// concurrently with it, which the generation check covers.
func (m *Manager) handle(ctx context.Context, ev provider.Event) {
	switch ev.Kind {
	case provider.EventSignedIn:
		seq := m.gen.Add(1)
		id, err := m.resolver.Resolve(ctx, ev.Account.ID)
		if err != nil {
			m.log.Error("lifecycle.resolve_failed", "user_id", ev.Account.ID, "err", err)
			m.metrics.Resolutions.WithLabelValues("failed").Inc()
			m.publish(seq, nil)
			return
		}
		m.publish(seq, &id)
	case provider.EventSignedOut:
		seq := m.gen.Add(1)
		m.log.Debug("lifecycle.signed_out")
		m.pubMu.Lock()
		if m.gen.Load() == seq {
			m.store.Clear()
		}
		m.pubMu.Unlock()
	default:
		// Token refreshes and anything a future provider emits carry no
		// identity change.
	}
}

// publish applies a resolution outcome unless a newer change has superseded
// it.
func (m *Manager) publish(seq uint64, id *identity.Identity) {
	m.pubMu.Lock()
	defer m.pubMu.Unlock()
	if m.gen.Load() != seq {
		m.metrics.Resolutions.WithLabelValues("superseded").Inc()
		return
	}
	m.metrics.Resolutions.WithLabelValues("applied").Inc()
	m.store.SetCurrent(id)
}
