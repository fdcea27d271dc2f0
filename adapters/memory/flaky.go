package memory

import (
	"context"
	"sync"

	"github.com/inkwellhq/quotad/ports"
)

// FlakyStore wraps a UsageStore and injects failures per operation.
// Used in tests to exercise the fail-open read / fail-closed write paths.
type FlakyStore struct {
	inner ports.UsageStore

	mu            sync.Mutex
	failLoad      error
	failSave      error
	failIncrement error
}

// NewFlakyStore wraps inner with failure injection. All operations pass
// through until a failure is armed.
func NewFlakyStore(inner ports.UsageStore) *FlakyStore {
	return &FlakyStore{inner: inner}
}

// FailLoad makes Load return err until cleared with nil.
func (s *FlakyStore) FailLoad(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLoad = err
}

// FailSave makes Save return err until cleared with nil.
func (s *FlakyStore) FailSave(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSave = err
}

// FailIncrement makes AtomicIncrement return err until cleared with nil.
func (s *FlakyStore) FailIncrement(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failIncrement = err
}

// Load delegates to the inner store unless a failure is armed.
func (s *FlakyStore) Load(ctx context.Context, userID string) (ports.UsageRecord, error) {
	s.mu.Lock()
	err := s.failLoad
	s.mu.Unlock()
	if err != nil {
		return ports.UsageRecord{}, err
	}
	return s.inner.Load(ctx, userID)
}

// Save delegates to the inner store unless a failure is armed.
func (s *FlakyStore) Save(ctx context.Context, rec ports.UsageRecord) error {
	s.mu.Lock()
	err := s.failSave
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.inner.Save(ctx, rec)
}

// AtomicIncrement delegates to the inner store unless a failure is armed.
func (s *FlakyStore) AtomicIncrement(ctx context.Context, userID string, amount int64) (int64, error) {
	s.mu.Lock()
	err := s.failIncrement
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return s.inner.AtomicIncrement(ctx, userID, amount)
}

// Ensure interface compliance.
var _ ports.UsageStore = (*FlakyStore)(nil)
