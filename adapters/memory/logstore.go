package memory

import (
	"context"
	"sync"
	"time"

	"github.com/inkwellhq/quotad/domain/usage"
	"github.com/inkwellhq/quotad/ports"
)

// LogStore is an in-memory implementation of ports.UsageLogStore.
type LogStore struct {
	mu      sync.RWMutex
	entries []usage.Entry
}

// NewLogStore creates a new in-memory log store.
func NewLogStore() *LogStore {
	return &LogStore{
		entries: make([]usage.Entry, 0),
	}
}

// Append stores a single log entry.
func (s *LogStore) Append(ctx context.Context, e usage.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, e)
	return nil
}

// ListByUser returns entries for a user within [start, end), oldest first.
func (s *LogStore) ListByUser(ctx context.Context, userID string, start, end time.Time) ([]usage.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []usage.Entry
	for _, e := range s.entries {
		if e.UserID == userID && !e.Timestamp.Before(start) && e.Timestamp.Before(end) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Len returns the number of stored entries (for testing).
func (s *LogStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ensure interface compliance.
var _ ports.UsageLogStore = (*LogStore)(nil)
