// Package store holds the published state of an acquisition session as a
// sequence of versioned, immutable snapshots.
package store

import (
	"sync"

	"github.com/signalsfoundry/geolocator/model"
)

// Store is a thread-safe holder for the latest snapshot. Subscribers
// receive snapshots over buffered channels; a slow subscriber loses its
// oldest pending snapshot rather than blocking the publisher.
type Store struct {
	mu      sync.RWMutex
	current model.Snapshot
	subs    map[int]chan model.Snapshot
	nextID  int
	closed  bool
}

// New creates a store whose initial snapshot is an idle session at version 0.
func New() *Store {
	return &Store{
		current: model.Snapshot{Status: model.StatusIdle},
		subs:    make(map[int]chan model.Snapshot),
	}
}

// Publish replaces the current snapshot, stamping it with the next version,
// and fans it out to subscribers. Callers must not mutate pointer fields of
// a snapshot after publishing it.
func (s *Store) Publish(snap model.Snapshot) model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap.Version = s.current.Version + 1
	s.current = snap
	for _, ch := range s.subs {
		offer(ch, snap)
	}
	return snap
}

// Current returns the latest snapshot.
func (s *Store) Current() model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Version returns the version of the latest snapshot.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Version
}

// Subscribe returns a channel that first receives the current snapshot and
// then every later publication. buffer below 1 is treated as 1. The
// returned function unsubscribes and closes the channel; it is safe to
// call more than once.
func (s *Store) Subscribe(buffer int) (<-chan model.Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan model.Snapshot, buffer)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		ch <- s.current
		close(ch)
		return ch, func() {}
	}

	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	ch <- s.current

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
		})
	}
}

// Close closes every subscriber channel. Publishing after Close still
// updates Current.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

// offer delivers snap without blocking, discarding the oldest buffered
// snapshot when the channel is full. Callers hold s.mu, so offer is the
// only sender on ch.
func offer(ch chan model.Snapshot, snap model.Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
