package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/inkwellhq/quotad/domain/usage"
	"github.com/inkwellhq/quotad/ports"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return db
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}

func TestUsageStore_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	s := NewUsageStore(db)
	ctx := context.Background()

	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	rec := ports.UsageRecord{
		UserID:        "user-1",
		QuestionsUsed: 3,
		DailyLimit:    5,
		PlanID:        "free",
		PeriodStart:   day,
		LastResetDate: day,
		LastUpdated:   day.Add(10 * time.Hour),
	}
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := s.Load(ctx, "user-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got.QuestionsUsed != 3 || got.DailyLimit != 5 || got.PlanID != "free" {
		t.Errorf("unexpected record: %+v", got)
	}
	if !got.LastResetDate.Equal(day) {
		t.Errorf("expected reset date %v, got %v", day, got.LastResetDate)
	}
}

func TestUsageStore_UnlimitedLimitSurvivesStorage(t *testing.T) {
	db := openTestDB(t)
	s := NewUsageStore(db)
	ctx := context.Background()

	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	rec := ports.UsageRecord{
		UserID: "user-1", DailyLimit: -1, PlanID: "agency",
		PeriodStart: day, LastResetDate: day, LastUpdated: day,
	}
	s.Save(ctx, rec)

	got, _ := s.Load(ctx, "user-1")
	if !got.DailyLimit.IsUnlimited() {
		t.Errorf("expected unlimited sentinel after round trip, got %d", got.DailyLimit)
	}
}

func TestUsageStore_LoadMissing(t *testing.T) {
	db := openTestDB(t)
	s := NewUsageStore(db)

	if _, err := s.Load(context.Background(), "nobody"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUsageStore_SaveUpserts(t *testing.T) {
	db := openTestDB(t)
	s := NewUsageStore(db)
	ctx := context.Background()

	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	rec := ports.UsageRecord{
		UserID: "user-1", QuestionsUsed: 1, DailyLimit: 5, PlanID: "free",
		PeriodStart: day, LastResetDate: day, LastUpdated: day,
	}
	s.Save(ctx, rec)

	rec.QuestionsUsed = 0
	rec.PlanID = "creator"
	rec.DailyLimit = 25
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, _ := s.Load(ctx, "user-1")
	if got.PlanID != "creator" || got.DailyLimit != 25 || got.QuestionsUsed != 0 {
		t.Errorf("unexpected record after upsert: %+v", got)
	}
}

func TestUsageStore_AtomicIncrement(t *testing.T) {
	db := openTestDB(t)
	s := NewUsageStore(db)
	ctx := context.Background()

	if _, err := s.AtomicIncrement(ctx, "nobody", 1); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing record, got %v", err)
	}

	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	s.Save(ctx, ports.UsageRecord{
		UserID: "user-1", DailyLimit: 5, PlanID: "free",
		PeriodStart: day, LastResetDate: day, LastUpdated: day,
	})

	n, err := s.AtomicIncrement(ctx, "user-1", 1)
	if err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected count 1, got %d", n)
	}
}

func TestUsageStore_ConcurrentIncrements(t *testing.T) {
	db := openTestDB(t)
	s := NewUsageStore(db)
	ctx := context.Background()

	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	s.Save(ctx, ports.UsageRecord{
		UserID: "user-1", DailyLimit: -1, PlanID: "agency",
		PeriodStart: day, LastResetDate: day, LastUpdated: day,
	})

	const goroutines = 10
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			if _, err := s.AtomicIncrement(ctx, "user-1", 1); err != nil {
				t.Errorf("increment failed: %v", err)
			}
		}()
	}
	wg.Wait()

	rec, _ := s.Load(ctx, "user-1")
	if rec.QuestionsUsed != goroutines {
		t.Errorf("expected %d after concurrent increments, got %d", goroutines, rec.QuestionsUsed)
	}
}

func TestLogStore_AppendAndList(t *testing.T) {
	db := openTestDB(t)
	s := NewLogStore(db)
	ctx := context.Background()

	base := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	entries := []usage.Entry{
		usage.NewEntry("e1", "user-1", "free", "caption", 100, base),
		usage.NewEntry("e2", "user-1", "free", "script", 200, base.Add(time.Hour)),
		usage.NewEntry("e3", "user-2", "pro", "caption", 300, base),
	}
	for _, e := range entries {
		if err := s.Append(ctx, e); err != nil {
			t.Fatalf("append %s failed: %v", e.ID, err)
		}
	}

	got, err := s.ListByUser(ctx, "user-1", base, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].ID != "e1" || got[1].ID != "e2" {
		t.Errorf("expected oldest-first order, got %+v", got)
	}
	if got[0].ArtifactBytes != 100 || got[0].Category != "caption" {
		t.Errorf("unexpected entry: %+v", got[0])
	}

	// End bound is exclusive.
	got, _ = s.ListByUser(ctx, "user-1", base, base.Add(time.Hour))
	if len(got) != 1 {
		t.Errorf("expected exclusive end bound, got %d entries", len(got))
	}
}
