package clock

import (
	"testing"
	"time"
)

func TestReal_DayStart(t *testing.T) {
	c := NewReal(time.UTC)

	in := time.Date(2026, 8, 31, 17, 42, 13, 500, time.UTC)
	got := c.DayStart(in)
	want := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestReal_DayStartCanonicalZone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	c := NewReal(ny)

	// 02:00 UTC on Sep 1 is still Aug 31 in New York; the boundary
	// follows the deployment zone, not the caller's.
	in := time.Date(2026, 9, 1, 2, 0, 0, 0, time.UTC)
	got := c.DayStart(in)
	want := time.Date(2026, 8, 31, 0, 0, 0, 0, ny)

	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestReal_NilLocationDefaultsUTC(t *testing.T) {
	c := NewReal(nil)
	if loc := c.Now().Location(); loc != time.UTC {
		t.Errorf("expected UTC, got %v", loc)
	}
}

func TestFake_SetAndAdvance(t *testing.T) {
	base := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	f := NewFake(base)

	if !f.Now().Equal(base) {
		t.Errorf("expected %v, got %v", base, f.Now())
	}

	f.Advance(15 * time.Hour)
	want := base.Add(15 * time.Hour)
	if !f.Now().Equal(want) {
		t.Errorf("expected %v, got %v", want, f.Now())
	}

	next := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	f.Set(next)
	if !f.Now().Equal(next) {
		t.Errorf("expected %v, got %v", next, f.Now())
	}
}

func TestFake_DayStart(t *testing.T) {
	f := NewFake(time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC))

	got := f.DayStart(f.Now())
	want := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
