// Package scheduler runs callbacks at points in simulated time. Simulated
// sensors use it to deliver readings and fire timeouts; a TimeController
// listener calls RunDue after every tick.
package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/signalsfoundry/geolocator/timectrl"
)

// EventScheduler schedules callbacks to run at specific clock times.
type EventScheduler interface {
	// Schedule registers f to run once the clock reaches at. The returned
	// ID cancels the event.
	Schedule(at time.Time, f func()) (id string)

	// Cancel drops a scheduled event. Unknown or already-run IDs are ignored.
	Cancel(id string)

	// Now returns the current time of the underlying clock.
	Now() time.Time

	// RunDue executes every event scheduled at or before Now, in time
	// order. Callbacks run without the scheduler lock held and may
	// schedule or cancel further events.
	RunDue()
}

type event struct {
	id        string
	when      time.Time
	f         func()
	cancelled bool
}

// queue keeps events ordered by time, then by insertion.
type queue struct {
	mu      sync.Mutex
	counter uint64
	prefix  string
	events  []*event
	index   map[string]*event
}

func newQueue(prefix string) *queue {
	return &queue{prefix: prefix, index: make(map[string]*event)}
}

func (q *queue) schedule(at time.Time, f func()) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.counter++
	ev := &event{
		id:   fmt.Sprintf("%s-%d", q.prefix, q.counter),
		when: at,
		f:    f,
	}

	// Equal times keep insertion order: search for the first later event.
	idx := sort.Search(len(q.events), func(i int) bool {
		return q.events[i].when.After(at)
	})
	q.events = append(q.events, nil)
	copy(q.events[idx+1:], q.events[idx:])
	q.events[idx] = ev

	q.index[ev.id] = ev
	return ev.id
}

func (q *queue) cancel(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ev, ok := q.index[id]
	if !ok {
		return
	}
	ev.cancelled = true
	delete(q.index, id)
}

// popDue removes and returns the earliest live event due at now, or nil.
func (q *queue) popDue(now time.Time) *event {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.events) > 0 {
		ev := q.events[0]
		if ev.cancelled {
			q.events = q.events[1:]
			continue
		}
		if ev.when.After(now) {
			return nil
		}
		q.events = q.events[1:]
		delete(q.index, ev.id)
		return ev
	}
	return nil
}

func (q *queue) runDue(now func() time.Time) {
	for {
		ev := q.popDue(now())
		if ev == nil {
			return
		}
		if ev.f != nil {
			ev.f()
		}
	}
}

func (q *queue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.index)
}

// eventScheduler reads time from a SimClock, normally the TimeController.
type eventScheduler struct {
	clock timectrl.SimClock
	q     *queue
}

// New creates an event scheduler backed by the given clock.
func New(clock timectrl.SimClock) EventScheduler {
	return &eventScheduler{clock: clock, q: newQueue("ev")}
}

func (s *eventScheduler) Schedule(at time.Time, f func()) string { return s.q.schedule(at, f) }
func (s *eventScheduler) Cancel(id string)                     { s.q.cancel(id) }
func (s *eventScheduler) Now() time.Time                       { return s.clock.Now() }
func (s *eventScheduler) RunDue()                              { s.q.runDue(s.clock.Now) }
