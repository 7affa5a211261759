// Package memory provides the in-memory guard store used in tests and
// single-node development setups.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tably/ingest-svc/internal/service/models/webhookevent"
)

type entry struct {
	confirmed bool
	orderID   int64
	createdAt time.Time
}

// GuardStore keeps reservations in a map guarded by one mutex. The whole
// check-and-set of TryReserve happens inside a single critical section, so
// two concurrent deliveries of the same key can never both observe Reserved.
type GuardStore struct {
	mu      sync.Mutex
	entries map[webhookevent.Key]entry
}

func NewGuardStore() *GuardStore {
	return &GuardStore{
		entries: make(map[webhookevent.Key]entry),
	}
}

func (s *GuardStore) TryReserve(_ context.Context, key webhookevent.Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; ok {
		return false, nil
	}

	s.entries[key] = entry{createdAt: time.Now()}

	return true, nil
}

func (s *GuardStore) Confirm(_ context.Context, key webhookevent.Key, orderID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = entry{createdAt: time.Now()}
	}
	e.confirmed = true
	e.orderID = orderID
	s.entries[key] = e

	return nil
}

func (s *GuardStore) Release(_ context.Context, key webhookevent.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && !e.confirmed {
		delete(s.entries, key)
	}

	return nil
}

func (s *GuardStore) DeleteExpired(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for key, e := range s.entries {
		if e.createdAt.Before(olderThan) {
			delete(s.entries, key)
			deleted++
		}
	}

	return deleted, nil
}
