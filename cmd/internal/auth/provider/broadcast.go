package provider

import "sync"

const subscriberBuffer = 64

// Subscription is a cancellable handle on the lifecycle event stream.
//
// C delivers events in emission order and is never closed; consumers select
// on Done to observe cancellation. Cancel stops delivery, unblocks any
// publisher waiting on this subscriber, and is safe to call more than once.
type Subscription struct {
	C <-chan Event

	ch   chan Event
	done chan struct{}
	once sync.Once
	drop func()
}

// Done is closed when the subscription has been cancelled.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Cancel stops delivery and releases the subscriber.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		close(s.done)
		if s.drop != nil {
			s.drop()
		}
	})
}

// Broadcaster fans lifecycle events out to subscribers. Local embeds one;
// other SessionProvider implementations can too.
//
// Publish blocks on a full subscriber queue instead of dropping: the event
// stream is a correctness input for identity synchronization, so losing an
// event is worse than briefly stalling the emitter. A cancelled subscription
// unblocks its pending sends via done.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[int]*Subscription
	next int
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]*Subscription)}
}

func (b *Broadcaster) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++

	ch := make(chan Event, subscriberBuffer)
	sub := &Subscription{
		C:    ch,
		ch:   ch,
		done: make(chan struct{}),
	}
	sub.drop = func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}

	b.subs[id] = sub
	return sub
}

func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	targets := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		targets = append(targets, s)
	}
	b.mu.Unlock()

	for _, s := range targets {
		select {
		case s.ch <- ev:
		case <-s.done:
		}
	}
}
