// Package clock provides Clock implementations.
package clock

import (
	"sync"
	"time"

	"github.com/inkwellhq/quotad/ports"
)

// Real reads the actual wall clock. Day boundaries are computed in the
// deployment's canonical zone, never the caller's.
type Real struct {
	loc *time.Location
}

// NewReal creates a real clock bound to the given zone.
// A nil location means UTC.
func NewReal(loc *time.Location) Real {
	if loc == nil {
		loc = time.UTC
	}
	return Real{loc: loc}
}

// Now returns the current time.
func (c Real) Now() time.Time {
	return time.Now().In(c.loc)
}

// DayStart returns midnight of the day containing t in the canonical zone.
func (c Real) DayStart(t time.Time) time.Time {
	lt := t.In(c.loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, c.loc)
}

// Fake provides a controllable clock for testing.
type Fake struct {
	mu      sync.RWMutex
	current time.Time
	loc     *time.Location
}

// NewFake creates a fake clock set to the given time. Day boundaries use
// the location of t.
func NewFake(t time.Time) *Fake {
	return &Fake{current: t, loc: t.Location()}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// DayStart returns midnight of the day containing t.
func (f *Fake) DayStart(t time.Time) time.Time {
	lt := t.In(f.loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, f.loc)
}

// Set sets the fake current time.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = t
}

// Advance moves the fake time forward by duration d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

// Ensure interface compliance.
var (
	_ ports.Clock = Real{}
	_ ports.Clock = (*Fake)(nil)
)
