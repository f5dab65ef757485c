package stream

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
)

var ErrAlreadyBound = errors.New("stream manager already bound")

type delivery struct {
	targets []*Subscription
	event   Event
}

// Manager fans events out to every live subscription of a subject.
//
// Publish may be called from any goroutine and never blocks. It hands the
// event to the single dispatcher goroutine started by Run. Until Run has been
// called the manager is unbound and published events are dropped.
type Manager struct {
	mu       sync.RWMutex
	subs     map[int64]map[*Subscription]struct{}
	dispatch chan delivery
	bound    atomic.Bool
	stopped  atomic.Bool
	closed   atomic.Bool
}

func NewManager(buffer int) *Manager {
	if buffer <= 0 {
		buffer = 1
	}
	return &Manager{
		subs:     make(map[int64]map[*Subscription]struct{}),
		dispatch: make(chan delivery, buffer),
	}
}

func (m *Manager) Subscribe(subject int64) *Subscription {
	sub := newSubscription()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed.Load() {
		sub.close()
		return sub
	}
	if m.subs[subject] == nil {
		m.subs[subject] = make(map[*Subscription]struct{})
	}
	m.subs[subject][sub] = struct{}{}
	return sub
}

// Unsubscribe removes sub and closes it. Unknown subscriptions are ignored.
func (m *Manager) Unsubscribe(subject int64, sub *Subscription) {
	m.mu.Lock()
	if set := m.subs[subject]; set != nil {
		delete(set, sub)
		if len(set) == 0 {
			delete(m.subs, subject)
		}
	}
	m.mu.Unlock()
	sub.close()
}

// Publish delivers event to the subscriptions registered for subject at the
// time of the call. Subscriptions added later do not see it.
func (m *Manager) Publish(subject int64, event Event) {
	m.mu.RLock()
	set := m.subs[subject]
	if len(set) == 0 {
		m.mu.RUnlock()
		return
	}
	targets := make([]*Subscription, 0, len(set))
	for sub := range set {
		targets = append(targets, sub)
	}
	m.mu.RUnlock()

	if !m.Bound() || m.closed.Load() {
		log.Printf("stream: no dispatcher, dropping %s event for subject %d", event.Name, subject)
		return
	}
	select {
	case m.dispatch <- delivery{targets: targets, event: event}:
	default:
		log.Printf("stream: dispatch buffer full, dropping %s event for subject %d", event.Name, subject)
	}
}

// Run binds the manager and delivers handed-off events until ctx is done.
// It may only be called once; after it returns the manager is unbound again
// and publishes are dropped.
func (m *Manager) Run(ctx context.Context) error {
	if !m.bound.CompareAndSwap(false, true) {
		return ErrAlreadyBound
	}
	defer m.stopped.Store(true)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d := <-m.dispatch:
			for _, sub := range d.targets {
				sub.push(d.event)
			}
		}
	}
}

// Bound reports whether a dispatcher is currently running.
func (m *Manager) Bound() bool {
	return m.bound.Load() && !m.stopped.Load()
}

func (m *Manager) Subscribers(subject int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs[subject])
}

// Close closes every subscription. Later publishes are dropped.
func (m *Manager) Close() {
	m.closed.Store(true)
	m.mu.Lock()
	defer m.mu.Unlock()
	for subject, set := range m.subs {
		for sub := range set {
			sub.close()
		}
		delete(m.subs, subject)
	}
}
