package library

import (
	"sync"
	"time"

	"github.com/desertthunder/tapedeck/internal/shared"
)

// ChannelState is the last known state of the update channel.
type ChannelState int

const (
	ChannelUnknown ChannelState = iota
	ChannelConnected
	ChannelDisconnected
)

func (s ChannelState) String() string {
	switch s {
	case ChannelConnected:
		return "connected"
	case ChannelDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Snapshot is the data available to the UI.
type Snapshot struct {
	Collection  Collection
	Channel     ChannelState
	LastError   error
	LastUpdated time.Time
	Loaded      bool // a full listing has been applied at least once
}

// Store coordinates concurrent updates to the library snapshot.
type Store struct {
	mu          sync.RWMutex
	snapshot    Snapshot
	subscribers map[string]chan Snapshot
}

func NewStore() *Store {
	return &Store{subscribers: map[string]chan Snapshot{}}
}

// Apply reduces a into the stored collection and returns the new snapshot.
// Subscribers are only notified when the collection actually changed.
func (s *Store) Apply(a Action) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.snapshot.Collection
	next := Reduce(prev, a)
	replaced := a.Kind == Loaded || a.Kind == ListReplaced

	s.snapshot.Collection = next
	s.snapshot.LastUpdated = time.Now()
	if replaced {
		s.snapshot.Loaded = true
		s.snapshot.LastError = nil
	}
	if replaced || next.Version() != prev.Version() {
		s.publishLocked()
	}
	return s.snapshotLocked()
}

// SetChannel records the channel state.
func (s *Store) SetChannel(state ChannelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot.Channel == state {
		return
	}
	s.snapshot.Channel = state
	s.publishLocked()
}

// RecordError keeps the current collection and records err for visibility.
func (s *Store) RecordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.LastError = err
	s.snapshot.LastUpdated = time.Now()
	s.publishLocked()
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return s.snapshot
}

// Subscribe returns a channel that always holds the latest snapshot, and a cancel function.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := shared.GenerateID()
	ch := make(chan Snapshot, 1)
	ch <- s.snapshotLocked()
	s.subscribers[key] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subscribers[key]; ok {
			close(c)
			delete(s.subscribers, key)
		}
	}
}

func (s *Store) publishLocked() {
	snap := s.snapshotLocked()
	for _, ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
