package stream

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("subscription closed")

// Subscription is an unbounded FIFO of events for one reader. Pushing never
// blocks; the reader waits on Ready or calls Next.
type Subscription struct {
	mu     sync.Mutex
	queue  []Event
	closed bool
	ready  chan struct{}
	done   chan struct{}
}

func newSubscription() *Subscription {
	return &Subscription{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

func (s *Subscription) push(event Event) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, event)
	s.mu.Unlock()
	select {
	case s.ready <- struct{}{}:
	default:
	}
	return true
}

// Ready fires after at least one push since the last receive from it.
func (s *Subscription) Ready() <-chan struct{} {
	return s.ready
}

// Done is closed once the subscription has been removed from its manager.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Drain removes and returns everything queued, oldest first.
func (s *Subscription) Drain() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.queue
	s.queue = nil
	return events
}

// Next returns the oldest queued event, waiting for one if necessary.
// Events queued before the subscription closed are still returned.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	for {
		if event, ok := s.pop(); ok {
			return event, nil
		}
		select {
		case <-s.ready:
		case <-s.done:
			if event, ok := s.pop(); ok {
				return event, nil
			}
			return Event{}, ErrClosed
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

func (s *Subscription) pop() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Event{}, false
	}
	event := s.queue[0]
	s.queue[0] = Event{}
	s.queue = s.queue[1:]
	return event, true
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}
