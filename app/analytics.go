package app

import (
	"context"
	"fmt"
	"time"

	"github.com/inkwellhq/quotad/domain/usage"
	"github.com/inkwellhq/quotad/ports"
)

// Analytics summarizes the consumption log for reporting. Read-only: it
// has no write access and no effect on quota state.
type Analytics struct {
	logs  ports.UsageLogStore
	clock ports.Clock
	loc   *time.Location
}

// NewAnalytics creates an analytics aggregator. A nil location means UTC.
func NewAnalytics(logs ports.UsageLogStore, clock ports.Clock, loc *time.Location) *Analytics {
	if loc == nil {
		loc = time.UTC
	}
	return &Analytics{logs: logs, clock: clock, loc: loc}
}

// Summarize folds the last windowDays of a user's log, today included,
// into per-day and per-category counts.
func (a *Analytics) Summarize(ctx context.Context, userID string, windowDays int) (usage.Summary, error) {
	if windowDays <= 0 {
		windowDays = 7
	}

	today := a.clock.DayStart(a.clock.Now())
	start := today.AddDate(0, 0, -(windowDays - 1))
	end := today.AddDate(0, 0, 1)

	entries, err := a.logs.ListByUser(ctx, userID, start, end)
	if err != nil {
		return usage.Summary{}, fmt.Errorf("list usage log: %w", err)
	}

	return usage.Summarize(entries, userID, start, end, a.loc), nil
}
