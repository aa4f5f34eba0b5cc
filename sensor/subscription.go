package sensor

import "sync"

// Subscription tracks the scheduled events behind one simulated request and
// makes its terminal transitions happen at most once. Simulated sensors
// return Close as the request's Cancel.
type Subscription struct {
	cancel func(id string)

	mu        sync.Mutex
	ids       []string
	timeoutID string
	delivered bool
	closed    bool
}

// NewSubscription creates a subscription whose events are cancelled with
// the given scheduler cancel function.
func NewSubscription(cancel func(id string)) *Subscription {
	return &Subscription{cancel: cancel}
}

// Add records a scheduled event belonging to the subscription.
func (s *Subscription) Add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.cancel(id)
		return
	}
	s.ids = append(s.ids, id)
}

// Track schedules f through schedule and forgets the event once it has
// run, so periodic sensors do not accumulate IDs over a long watch.
// schedule must not run f synchronously.
func (s *Subscription) Track(schedule func(f func()) string, f func()) {
	var (
		mu sync.Mutex
		id string
	)
	mu.Lock()
	defer mu.Unlock()
	id = schedule(func() {
		mu.Lock()
		ran := id
		mu.Unlock()
		s.Done(ran)
		f()
	})
	s.Add(id)
}

// Done forgets an event that has already run.
func (s *Subscription) Done(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range s.ids {
		if v == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			return
		}
	}
}

// SetTimeout records the event that fires the request timeout.
func (s *Subscription) SetTimeout(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.delivered {
		s.cancel(id)
		return
	}
	s.timeoutID = id
}

// Deliver is called before handing a reading to the consumer. It reports
// false when the subscription is already closed. The first delivery
// disarms the timeout; final closes the subscription.
func (s *Subscription) Deliver(final bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if !s.delivered {
		s.delivered = true
		if s.timeoutID != "" {
			s.cancel(s.timeoutID)
			s.timeoutID = ""
		}
	}
	if final {
		s.closeLocked()
	}
	return true
}

// Fail closes the subscription ahead of an error callback. It reports
// false when already closed.
func (s *Subscription) Fail() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closeLocked()
	return true
}

// Timeout is Fail for the timeout event; it also reports false once a
// reading has been delivered.
func (s *Subscription) Timeout() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.delivered {
		return false
	}
	s.closeLocked()
	return true
}

// Close cancels every outstanding event. Safe to call repeatedly.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

// Closed reports whether the subscription has ended.
func (s *Subscription) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Subscription) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	for _, id := range s.ids {
		s.cancel(id)
	}
	if s.timeoutID != "" {
		s.cancel(s.timeoutID)
	}
	s.ids = nil
	s.timeoutID = ""
}
