package state

import (
	"context"
	"log/slog"
	"sync"

	"keel/cmd/identity"
)

// DirectoryLoader fills the store's directory whenever the elevated identity
// changes: elevation from a plain member, a switch to a different elevated
// account (sign-in over an existing session emits no signed-out in between),
// or a role change between admin and manager. A manager staying signed in
// does not hammer the store.
//
// Load failures are logged and swallowed; the previous directory (possibly
// empty) stays in place.
type DirectoryLoader struct {
	log      *slog.Logger
	store    *Store
	profiles identity.ProfileStore
	metrics  *Metrics

	mu     sync.Mutex
	cancel func()
	done   chan struct{}
}

func NewDirectoryLoader(log *slog.Logger, store *Store, profiles identity.ProfileStore, metrics *Metrics) *DirectoryLoader {
	return &DirectoryLoader{
		log:      log,
		store:    store,
		profiles: profiles,
		metrics:  metrics,
	}
}

// Start subscribes to store transitions and watches the current identity.
// Call Close (or close the store) to stop it.
func (l *DirectoryLoader) Start(ctx context.Context) {
	ch, cancel := l.store.Subscribe()

	l.mu.Lock()
	l.cancel = cancel
	l.done = make(chan struct{})
	done := l.done
	l.mu.Unlock()

	go func() {
		defer close(done)
		var curID string
		var curRole identity.Role
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-ch:
				if !ok {
					return
				}
				var id string
				var role identity.Role
				if snap.Current != nil && snap.Current.Role.Elevated() {
					id, role = snap.Current.ID, snap.Current.Role
				}
				// Reload whenever the elevated identity itself changes, not
				// just when elevation toggles on. SetDirectory publishes keep
				// Current intact, so a load cannot retrigger itself.
				if id != "" && (id != curID || role != curRole) {
					l.load(ctx)
				}
				curID, curRole = id, role
			}
		}
	}()
}

// Refresh forces one directory load. The mutation service calls it after a
// successful identity creation so the new entry shows up without waiting for
// a role transition.
func (l *DirectoryLoader) Refresh(ctx context.Context) {
	l.load(ctx)
}

// Close cancels the store subscription and waits for the watcher to exit.
func (l *DirectoryLoader) Close() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (l *DirectoryLoader) load(ctx context.Context) {
	profiles, err := l.profiles.ListAll(ctx)
	if err != nil {
		l.log.Error("directory.load_failed", "err", err)
		l.metrics.DirectoryLoads.WithLabelValues("failed").Inc()
		return
	}

	dir := make([]identity.Identity, 0, len(profiles))
	for _, p := range profiles {
		dir = append(dir, p.Identity())
	}
	l.store.SetDirectory(dir)

	l.log.Debug("directory.loaded", "count", len(dir))
	l.metrics.DirectoryLoads.WithLabelValues("ok").Inc()
}
