package state

import (
	"sync"
	"sync/atomic"

	"keel/cmd/identity"
)

// Phase tracks how far bootstrap has progressed. It moves forward only:
// NotStarted -> InProgress -> Done.
type Phase int32

const (
	PhaseNotStarted Phase = iota
	PhaseInProgress
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not_started"
	case PhaseInProgress:
		return "in_progress"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of the store at one point in time. Directory
// is a private copy; callers may keep it.
type Snapshot struct {
	Current   *identity.Identity
	Loading   bool
	Phase     Phase
	Directory []identity.Identity
}

// Store holds the current identity state. It is explicitly constructed and
// injected; nothing in this package reaches for a package-level instance.
//
// Loading starts true and goes false on the first publish, never back. After
// Close all writes are silent no-ops, so a resolution that completes during
// teardown cannot resurrect state.
type Store struct {
	phase atomic.Int32

	mu        sync.Mutex
	current   *identity.Identity
	loading   bool
	directory []identity.Identity
	closed    bool

	subs    map[int]chan Snapshot
	nextSub int
}

func NewStore() *Store {
	return &Store{
		loading: true,
		subs:    make(map[int]chan Snapshot),
	}
}

// ClaimBootstrap atomically claims the bootstrap slot. Exactly one caller
// observes true; everyone else finds the slot taken.
func (s *Store) ClaimBootstrap() bool {
	return s.phase.CompareAndSwap(int32(PhaseNotStarted), int32(PhaseInProgress))
}

// FinishBootstrap marks bootstrap done. Called once by the claimant whether
// bootstrap resolved an identity or not.
func (s *Store) FinishBootstrap() {
	s.phase.Store(int32(PhaseDone))
}

func (s *Store) Phase() Phase {
	return Phase(s.phase.Load())
}

// SetCurrent replaces the current identity and clears the loading flag.
// id may be nil (anonymous). The passed value is copied.
func (s *Store) SetCurrent(id *identity.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if id == nil {
		s.current = nil
	} else {
		cp := *id
		s.current = &cp
	}
	s.loading = false
	s.publishLocked()
}

// Clear resets to the signed-out shape: no identity, not loading, empty
// directory.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.current = nil
	s.loading = false
	s.directory = nil
	s.publishLocked()
}

// SetDirectory replaces the directory listing, most recent first.
func (s *Store) SetDirectory(dir []identity.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.directory = append([]identity.Identity(nil), dir...)
	s.publishLocked()
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers for state snapshots. The channel conflates: it holds
// only the latest snapshot, so a slow consumer sees the newest state rather
// than a backlog. The first snapshot (the state at subscribe time) is already
// buffered. cancel is idempotent; after Close the channel is closed.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	key := s.nextSub
	s.nextSub++
	s.subs[key] = ch
	ch <- s.snapshotLocked()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[key]; ok {
				delete(s.subs, key)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Close marks the store torn down: writes become no-ops and all subscriber
// channels are closed. Idempotent.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for key, ch := range s.subs {
		delete(s.subs, key)
		close(ch)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Loading: s.loading,
		Phase:   Phase(s.phase.Load()),
	}
	if s.current != nil {
		cp := *s.current
		snap.Current = &cp
	}
	if len(s.directory) > 0 {
		snap.Directory = append([]identity.Identity(nil), s.directory...)
	}
	return snap
}

// publishLocked pushes the latest snapshot to every subscriber, replacing any
// undelivered one. Never blocks.
func (s *Store) publishLocked() {
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// Full: evict the stale snapshot. We are the only sender (mu is
			// held), so the retry cannot block.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
