package scheduler

import (
	"sync"
	"time"
)

// Fake is an EventScheduler with its own clock that only moves when a test
// calls Advance or AdvanceTo. It also satisfies timectrl.SimClock.
type Fake struct {
	mu  sync.Mutex
	now time.Time
	q   *queue
}

// NewFake creates a fake scheduler starting at the given time.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start, q: newQueue("fake-ev")}
}

// Now returns the fake time.
func (s *Fake) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Schedule registers a callback to run at the given fake time.
func (s *Fake) Schedule(at time.Time, f func()) string { return s.q.schedule(at, f) }

// Cancel drops a scheduled event.
func (s *Fake) Cancel(id string) { s.q.cancel(id) }

// RunDue executes all events scheduled at or before the fake time.
func (s *Fake) RunDue() { s.q.runDue(s.Now) }

// Pending returns the number of live scheduled events.
func (s *Fake) Pending() int { return s.q.pending() }

// AdvanceTo moves the fake time forward and runs due events. Time never
// moves backwards.
func (s *Fake) AdvanceTo(t time.Time) {
	s.mu.Lock()
	if t.Before(s.now) {
		s.mu.Unlock()
		return
	}
	s.now = t
	s.mu.Unlock()

	s.RunDue()
}

// Advance moves the fake time forward by d and runs due events.
func (s *Fake) Advance(d time.Duration) {
	s.AdvanceTo(s.Now().Add(d))
}
