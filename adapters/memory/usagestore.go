// Package memory provides in-memory store implementations, used for
// tests and single-node development deployments.
package memory

import (
	"context"
	"sync"

	"github.com/inkwellhq/quotad/ports"
)

// UsageStore is an in-memory implementation of ports.UsageStore.
// The mutex serializes increments, which is what makes it a valid
// stand-in for a store with an atomic increment primitive.
type UsageStore struct {
	mu      sync.RWMutex
	records map[string]ports.UsageRecord
}

// NewUsageStore creates a new in-memory usage store.
func NewUsageStore() *UsageStore {
	return &UsageStore{
		records: make(map[string]ports.UsageRecord),
	}
}

// Load retrieves the record for a user.
func (s *UsageStore) Load(ctx context.Context, userID string) (ports.UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[userID]
	if !ok {
		return ports.UsageRecord{}, ports.ErrNotFound
	}
	return rec, nil
}

// Save stores a record, overwriting any existing one.
func (s *UsageStore) Save(ctx context.Context, rec ports.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.UserID] = rec
	return nil
}

// AtomicIncrement adds amount to the user's count and returns the new count.
func (s *UsageStore) AtomicIncrement(ctx context.Context, userID string, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return 0, ports.ErrNotFound
	}

	rec.QuestionsUsed += amount
	s.records[userID] = rec
	return rec.QuestionsUsed, nil
}

// Len returns the number of stored records (for testing).
func (s *UsageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Ensure interface compliance.
var _ ports.UsageStore = (*UsageStore)(nil)
