// Package usage provides consumption log entry types and aggregation
// functions. All functions are pure - no side effects.
package usage

import "time"

// Entry represents a single consumption event (immutable value type).
// The consumed content itself is never stored, only its size.
type Entry struct {
	ID            string
	UserID        string
	PlanID        string
	Category      string // calling feature/tool, e.g. "caption", "script"
	ArtifactBytes int64  // size of the generated artifact
	Timestamp     time.Time
}

// NewEntry creates a consumption log entry.
func NewEntry(id, userID, planID, category string, artifactBytes int64, ts time.Time) Entry {
	if artifactBytes < 0 {
		artifactBytes = 0
	}
	return Entry{
		ID:            id,
		UserID:        userID,
		PlanID:        planID,
		Category:      category,
		ArtifactBytes: artifactBytes,
		Timestamp:     ts,
	}
}

// Summary represents aggregated consumption over a window (value type).
type Summary struct {
	UserID           string
	WindowStart      time.Time
	WindowEnd        time.Time
	TotalCount       int64
	PerDayCounts     map[string]int64 // keyed by "2006-01-02" in the canonical zone
	PerCategoryCounts map[string]int64
	AvgArtifactBytes int64
}
