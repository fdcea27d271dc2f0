// Package quota provides pure functions for daily quota accounting.
// All functions are deterministic with no side effects; I/O and clock
// reads stay in the app layer.
package quota

import (
	"time"

	"github.com/inkwellhq/quotad/domain/plan"
	"github.com/inkwellhq/quotad/ports"
)

// NewRecord creates the initial record for a user on first access.
// today must already be a day boundary (see ports.Clock.DayStart).
// This is a PURE function.
func NewRecord(userID, planID string, limit plan.Limit, today, now time.Time) ports.UsageRecord {
	return ports.UsageRecord{
		UserID:        userID,
		QuestionsUsed: 0,
		DailyLimit:    limit,
		PlanID:        planID,
		PeriodStart:   today,
		LastResetDate: today,
		LastUpdated:   now,
	}
}

// NeedsReset reports whether the record's counting window predates today.
// This is a PURE function.
func NeedsReset(rec ports.UsageRecord, today time.Time) bool {
	return rec.LastResetDate.Before(today)
}

// Reset returns the record rolled over to a new day: count zeroed, window
// moved to today, limit recomputed from the current plan. The only way
// QuestionsUsed ever decreases.
// This is a PURE function.
func Reset(rec ports.UsageRecord, planID string, limit plan.Limit, today, now time.Time) ports.UsageRecord {
	rec.QuestionsUsed = 0
	rec.DailyLimit = limit
	rec.PlanID = planID
	rec.PeriodStart = today
	rec.LastResetDate = today
	rec.LastUpdated = now
	return rec
}

// CanConsume reports whether one more question fits within the record's
// daily limit.
// This is a PURE function.
func CanConsume(rec ports.UsageRecord) bool {
	if rec.DailyLimit.IsUnlimited() {
		return true
	}
	return rec.QuestionsUsed < int64(rec.DailyLimit)
}

// Remaining returns how many questions are left today, or -1 for
// unlimited plans. Never negative for finite limits, even when
// concurrent consumption overshot the cap.
// This is a PURE function.
func Remaining(rec ports.UsageRecord) int64 {
	if rec.DailyLimit.IsUnlimited() {
		return -1
	}
	left := int64(rec.DailyLimit) - rec.QuestionsUsed
	if left < 0 {
		return 0
	}
	return left
}
