// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/inkwellhq/quotad/domain/plan"
	"github.com/inkwellhq/quotad/domain/usage"
)

// ErrNotFound is returned by stores when no record exists for a key.
var ErrNotFound = errors.New("record not found")

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability. DayStart returns the start of the
// calendar day containing t in the deployment's canonical time zone; all
// reset decisions go through it, never raw wall-clock comparisons.
type Clock interface {
	Now() time.Time
	DayStart(t time.Time) time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// UsageRecord is the authoritative quota state for one user.
type UsageRecord struct {
	UserID        string
	QuestionsUsed int64
	DailyLimit    plan.Limit
	PlanID        string
	PeriodStart   time.Time // day boundary in the canonical zone
	LastResetDate time.Time // equals PeriodStart after a reset
	LastUpdated   time.Time
}

// UsageStore persists usage records. It is the single source of truth across
// processes; all serialization of increments happens here, not in any cache.
type UsageStore interface {
	// Load retrieves the record for a user. Returns ErrNotFound if absent.
	Load(ctx context.Context, userID string) (UsageRecord, error)

	// Save stores a record, overwriting any existing one.
	// Used on creation and on day-boundary reset.
	Save(ctx context.Context, rec UsageRecord) error

	// AtomicIncrement adds amount to the user's consumed count and returns
	// the new count. The update must be atomic relative to concurrent
	// increments for the same user. Returns ErrNotFound if no record
	// exists; it never creates one.
	AtomicIncrement(ctx context.Context, userID string, amount int64) (int64, error)
}

// UsageLogStore persists the append-only consumption log.
type UsageLogStore interface {
	// Append stores a single log entry. At-least-once delivery is
	// acceptable; duplicates cost analytics accuracy, not quota state.
	Append(ctx context.Context, e usage.Entry) error

	// ListByUser returns entries for a user with timestamps in
	// [start, end), ordered oldest first.
	ListByUser(ctx context.Context, userID string, start, end time.Time) ([]usage.Entry, error)
}
