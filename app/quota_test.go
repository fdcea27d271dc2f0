package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/inkwellhq/quotad/adapters/clock"
	"github.com/inkwellhq/quotad/adapters/idgen"
	"github.com/inkwellhq/quotad/adapters/memory"
	"github.com/inkwellhq/quotad/domain/plan"
	"github.com/inkwellhq/quotad/domain/quota"
	"github.com/inkwellhq/quotad/domain/usage"
	"github.com/inkwellhq/quotad/ports"
)

// -----------------------------------------------------------------------------
// Test fixtures
// -----------------------------------------------------------------------------

type fixture struct {
	svc   *QuotaService
	store *memory.UsageStore
	flaky *memory.FlakyStore
	logs  *memory.LogStore
	clock *clock.Fake
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewUsageStore()
	flaky := memory.NewFlakyStore(store)
	logs := memory.NewLogStore()
	clk := clock.NewFake(time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC))

	svc := NewQuotaService(QuotaDeps{
		Store:  flaky,
		Logs:   logs,
		Clock:  clk,
		IDGen:  idgen.NewSequential("evt"),
		Logger: zerolog.Nop(),
	}, QuotaConfig{})

	return &fixture{svc: svc, store: store, flaky: flaky, logs: logs, clock: clk}
}

// brokenLogStore fails every append and holds no entries.
type brokenLogStore struct{}

func (brokenLogStore) Append(ctx context.Context, e usage.Entry) error {
	return errors.New("log store down")
}

func (brokenLogStore) ListByUser(ctx context.Context, userID string, start, end time.Time) ([]usage.Entry, error) {
	return nil, nil
}

// countingStore counts Load calls through to an inner store.
type countingStore struct {
	inner ports.UsageStore

	mu    sync.Mutex
	loads int
}

func (s *countingStore) Load(ctx context.Context, userID string) (ports.UsageRecord, error) {
	s.mu.Lock()
	s.loads++
	s.mu.Unlock()
	return s.inner.Load(ctx, userID)
}

func (s *countingStore) Save(ctx context.Context, rec ports.UsageRecord) error {
	return s.inner.Save(ctx, rec)
}

func (s *countingStore) AtomicIncrement(ctx context.Context, userID string, amount int64) (int64, error) {
	return s.inner.AtomicIncrement(ctx, userID, amount)
}

func (s *countingStore) loadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

// -----------------------------------------------------------------------------
// GetUsage
// -----------------------------------------------------------------------------

func TestGetUsage_CreatesRecordOnFirstAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := f.svc.GetUsage(ctx, "user-1", "free")
	if rec.QuestionsUsed != 0 {
		t.Errorf("expected fresh record with 0 used, got %d", rec.QuestionsUsed)
	}
	if rec.DailyLimit != 5 {
		t.Errorf("expected free limit 5, got %d", rec.DailyLimit)
	}

	// The record is persisted, not just in-memory.
	stored, err := f.store.Load(ctx, "user-1")
	if err != nil {
		t.Fatalf("expected record persisted: %v", err)
	}
	if stored.PlanID != "free" {
		t.Errorf("expected plan free, got %q", stored.PlanID)
	}
}

func TestGetUsage_ResetsAtDayBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Day 1: consume 4 of 5.
	for i := 0; i < 4; i++ {
		allowed, err := f.svc.RecordConsumption(ctx, "user-1", "free", "caption", 100)
		if err != nil || !allowed {
			t.Fatalf("consumption %d failed: allowed=%v err=%v", i, allowed, err)
		}
	}
	if rec := f.svc.GetUsage(ctx, "user-1", "free"); rec.QuestionsUsed != 4 {
		t.Fatalf("expected 4 used on day 1, got %d", rec.QuestionsUsed)
	}

	// Cross the day boundary.
	f.clock.Set(time.Date(2026, 9, 1, 0, 0, 1, 0, time.UTC))

	rec := f.svc.GetUsage(ctx, "user-1", "free")
	if rec.QuestionsUsed != 0 {
		t.Errorf("expected 0 used after reset, got %d", rec.QuestionsUsed)
	}
	wantDay := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	if !rec.LastResetDate.Equal(wantDay) {
		t.Errorf("expected reset date %v, got %v", wantDay, rec.LastResetDate)
	}

	// The reset is persisted.
	stored, _ := f.store.Load(ctx, "user-1")
	if stored.QuestionsUsed != 0 {
		t.Errorf("expected reset persisted, got %d used", stored.QuestionsUsed)
	}
}

func TestGetUsage_StaleCacheEntryNotServedAcrossBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.svc.RecordConsumption(ctx, "user-1", "free", "caption", 0)

	// The record is cached; within the TTL but past the boundary, the
	// cached copy must not be served stale.
	f.clock.Set(time.Date(2026, 9, 1, 0, 0, 1, 0, time.UTC))
	rec := f.svc.GetUsage(ctx, "user-1", "free")
	if rec.QuestionsUsed != 0 {
		t.Errorf("stale cached record served across boundary: %d used", rec.QuestionsUsed)
	}
}

func TestGetUsage_FailOpenWhenStoreDown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.flaky.FailLoad(errors.New("connection refused"))

	rec := f.svc.GetUsage(ctx, "user-1", "free")
	if rec.QuestionsUsed != 0 {
		t.Errorf("expected zeroed fail-open record, got %d used", rec.QuestionsUsed)
	}
	if rec.DailyLimit != 5 {
		t.Errorf("expected plan limit on fail-open record, got %d", rec.DailyLimit)
	}
	if !quota.CanConsume(rec) {
		t.Error("fail-open record must permit consumption")
	}
}

func TestGetUsage_DegradedRecordNotCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Seed real state: 3 used.
	for i := 0; i < 3; i++ {
		f.svc.RecordConsumption(ctx, "user-1", "free", "caption", 0)
	}
	f.svc.cache.Invalidate("user-1")

	// Outage: reads degrade to a zeroed record.
	f.flaky.FailLoad(errors.New("down"))
	if rec := f.svc.GetUsage(ctx, "user-1", "free"); rec.QuestionsUsed != 0 {
		t.Fatalf("expected degraded record, got %d used", rec.QuestionsUsed)
	}

	// Recovery: the degraded record must not mask real state.
	f.flaky.FailLoad(nil)
	if rec := f.svc.GetUsage(ctx, "user-1", "free"); rec.QuestionsUsed != 3 {
		t.Errorf("expected real state 3 after recovery, got %d", rec.QuestionsUsed)
	}
}

func TestGetUsage_CacheHitAvoidsStore(t *testing.T) {
	inner := memory.NewUsageStore()
	counting := &countingStore{inner: inner}
	clk := clock.NewFake(time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC))
	svc := NewQuotaService(QuotaDeps{
		Store:  counting,
		Logs:   memory.NewLogStore(),
		Clock:  clk,
		IDGen:  idgen.NewSequential("evt"),
		Logger: zerolog.Nop(),
	}, QuotaConfig{})
	ctx := context.Background()

	svc.GetUsage(ctx, "user-1", "free")
	first := counting.loadCount()

	svc.GetUsage(ctx, "user-1", "free")
	svc.GetUsage(ctx, "user-1", "free")

	if counting.loadCount() != first {
		t.Errorf("expected cached reads, got %d loads after %d", counting.loadCount(), first)
	}
}

func TestGetUsage_UnknownPlanGetsMostRestrictiveLimit(t *testing.T) {
	f := newFixture(t)

	rec := f.svc.GetUsage(context.Background(), "user-1", "enterprise-beta")
	// Most restrictive finite default is free's 5.
	if rec.DailyLimit != 5 {
		t.Errorf("expected most restrictive limit 5 for unknown plan, got %d", rec.DailyLimit)
	}
}

// -----------------------------------------------------------------------------
// RecordConsumption
// -----------------------------------------------------------------------------

func TestRecordConsumption_SequentialBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// free plan: exactly 5 consumptions succeed.
	for i := 0; i < 5; i++ {
		allowed, err := f.svc.RecordConsumption(ctx, "user-1", "free", "caption", 64)
		if err != nil {
			t.Fatalf("consumption %d errored: %v", i, err)
		}
		if !allowed {
			t.Fatalf("consumption %d denied before limit", i)
		}
	}

	// The 6th is denied without error and without counting.
	allowed, err := f.svc.RecordConsumption(ctx, "user-1", "free", "caption", 64)
	if err != nil {
		t.Fatalf("denial must not be an error: %v", err)
	}
	if allowed {
		t.Error("expected denial at limit")
	}

	rec, _ := f.store.Load(ctx, "user-1")
	if rec.QuestionsUsed != 5 {
		t.Errorf("denied attempt must not count, got %d used", rec.QuestionsUsed)
	}
	if f.logs.Len() != 5 {
		t.Errorf("denied attempt must not be logged, got %d entries", f.logs.Len())
	}
}

func TestRecordConsumption_UnlimitedPlanNeverDenied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		allowed, err := f.svc.RecordConsumption(ctx, "user-1", "agency", "script", 0)
		if err != nil || !allowed {
			t.Fatalf("unlimited consumption %d: allowed=%v err=%v", i, allowed, err)
		}
	}

	rec := f.svc.GetUsage(ctx, "user-1", "agency")
	if rec.QuestionsUsed != 1000 {
		t.Errorf("expected 1000 counted, got %d", rec.QuestionsUsed)
	}
	if !rec.DailyLimit.IsUnlimited() {
		t.Errorf("expected unlimited sentinel, got %d", rec.DailyLimit)
	}
}

func TestRecordConsumption_ConcurrentOvershootBounded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const goroutines = 20 // free limit is 5

	// Establish the record up front so the burst races on the increment,
	// not on first-access creation.
	f.svc.GetUsage(ctx, "user-1", "free")

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			f.svc.RecordConsumption(ctx, "user-1", "free", "caption", 0)
		}()
	}
	wg.Wait()

	rec, err := f.store.Load(ctx, "user-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if rec.QuestionsUsed < 5 {
		t.Errorf("expected at least the limit consumed, got %d", rec.QuestionsUsed)
	}
	if rec.QuestionsUsed > 5+goroutines {
		t.Errorf("overshoot exceeds in-flight bound: %d used", rec.QuestionsUsed)
	}

	// Once the dust settles, everything is denied and the count is stable.
	// Drop the cache so the next read reflects the settled store count
	// rather than whichever in-flight snapshot was written last.
	f.svc.cache.Invalidate("user-1")
	settled := rec.QuestionsUsed
	for i := 0; i < 50; i++ {
		allowed, err := f.svc.RecordConsumption(ctx, "user-1", "free", "caption", 0)
		if err != nil {
			t.Fatalf("post-settle consumption errored: %v", err)
		}
		if allowed {
			t.Fatal("expected denial once limit reached")
		}
	}
	rec, _ = f.store.Load(ctx, "user-1")
	if rec.QuestionsUsed != settled {
		t.Errorf("count moved after settlement: %d -> %d", settled, rec.QuestionsUsed)
	}
}

func TestRecordConsumption_FailClosedOnIncrementFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Establish the record first, then break the increment path only.
	f.svc.GetUsage(ctx, "user-1", "free")
	f.flaky.FailIncrement(errors.New("disk full"))

	allowed, err := f.svc.RecordConsumption(ctx, "user-1", "free", "caption", 0)
	if allowed {
		t.Error("expected consumption refused when increment fails")
	}
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestRecordConsumption_IncrementFailureInvalidatesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.svc.RecordConsumption(ctx, "user-1", "free", "caption", 0)
	f.flaky.FailIncrement(errors.New("timeout"))
	f.svc.RecordConsumption(ctx, "user-1", "free", "caption", 0)

	if _, ok := f.svc.cache.Get("user-1"); ok {
		t.Error("expected cache entry dropped after increment failure")
	}
}

func TestRecordConsumption_LogFailureDoesNotFailConsumption(t *testing.T) {
	store := memory.NewUsageStore()
	clk := clock.NewFake(time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC))
	svc := NewQuotaService(QuotaDeps{
		Store:  store,
		Logs:   brokenLogStore{},
		Clock:  clk,
		IDGen:  idgen.NewSequential("evt"),
		Logger: zerolog.Nop(),
	}, QuotaConfig{})

	allowed, err := svc.RecordConsumption(context.Background(), "user-1", "free", "caption", 0)
	if err != nil {
		t.Fatalf("log failure must not surface: %v", err)
	}
	if !allowed {
		t.Error("expected consumption allowed despite log failure")
	}

	rec, _ := store.Load(context.Background(), "user-1")
	if rec.QuestionsUsed != 1 {
		t.Errorf("expected increment applied, got %d", rec.QuestionsUsed)
	}
}

func TestRecordConsumption_AppendsLogEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.svc.RecordConsumption(ctx, "user-1", "creator", "script", 2048)

	entries, err := f.logs.ListByUser(ctx, "user-1",
		time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	e := entries[0]
	if e.ID != "evt-1" || e.PlanID != "creator" || e.Category != "script" || e.ArtifactBytes != 2048 {
		t.Errorf("unexpected entry: %+v", e)
	}
	if !e.Timestamp.Equal(f.clock.Now()) {
		t.Errorf("expected clock timestamp, got %v", e.Timestamp)
	}
}

// -----------------------------------------------------------------------------
// CanConsume and plan reload
// -----------------------------------------------------------------------------

func TestCanConsume_ReflectsRemaining(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if !f.svc.CanConsume(ctx, "user-1", "free") {
		t.Error("expected headroom on fresh record")
	}
	for i := 0; i < 5; i++ {
		f.svc.RecordConsumption(ctx, "user-1", "free", "caption", 0)
	}
	if f.svc.CanConsume(ctx, "user-1", "free") {
		t.Error("expected no headroom at limit")
	}
}

func TestUpdatePlans_AppliesToNextReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.svc.GetUsage(ctx, "user-1", "free")

	f.svc.UpdatePlans([]plan.Plan{
		{ID: "free", Name: "Free", DailyQuestions: 10, IsDefault: true},
	})

	// Limits recompute at the day boundary.
	f.clock.Set(time.Date(2026, 9, 1, 0, 0, 1, 0, time.UTC))
	rec := f.svc.GetUsage(ctx, "user-1", "free")
	if rec.DailyLimit != 10 {
		t.Errorf("expected reloaded limit 10 after reset, got %d", rec.DailyLimit)
	}
}

// -----------------------------------------------------------------------------
// End-to-end plan scenarios
// -----------------------------------------------------------------------------

func TestScenario_FreePlanDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A free user works through their morning: 5 questions allowed, the
	// 6th denied, and a fresh allowance the next day.
	for i := 0; i < 5; i++ {
		allowed, _ := f.svc.RecordConsumption(ctx, "creator-42", "free", "caption", 512)
		if !allowed {
			t.Fatalf("question %d unexpectedly denied", i+1)
		}
	}
	if allowed, _ := f.svc.RecordConsumption(ctx, "creator-42", "free", "caption", 512); allowed {
		t.Fatal("6th question must be denied")
	}

	f.clock.Set(time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC))
	if allowed, _ := f.svc.RecordConsumption(ctx, "creator-42", "free", "caption", 512); !allowed {
		t.Fatal("expected fresh allowance the next day")
	}
}
