package usage

import "time"

// dayKey formats a timestamp as a per-day bucket key in loc.
func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// Summarize folds entries into a summary for the window [start, end).
// Every day in the window appears in PerDayCounts, zero-valued when no
// entry fell on it, so charts render without gaps.
// This is a PURE function.
func Summarize(entries []Entry, userID string, start, end time.Time, loc *time.Location) Summary {
	s := Summary{
		UserID:            userID,
		WindowStart:       start,
		WindowEnd:         end,
		PerDayCounts:      make(map[string]int64),
		PerCategoryCounts: make(map[string]int64),
	}

	// Pre-seed the day buckets.
	for d := start.In(loc); d.Before(end); d = d.AddDate(0, 0, 1) {
		s.PerDayCounts[dayKey(d, loc)] = 0
	}

	var totalBytes int64
	for _, e := range entries {
		if e.Timestamp.Before(start) || !e.Timestamp.Before(end) {
			continue
		}
		s.TotalCount++
		s.PerDayCounts[dayKey(e.Timestamp, loc)]++
		s.PerCategoryCounts[e.Category]++
		totalBytes += e.ArtifactBytes
	}

	if s.TotalCount > 0 {
		s.AvgArtifactBytes = totalBytes / s.TotalCount
	}

	return s
}

// Merge combines two summaries over adjacent or overlapping windows.
// This is a PURE function.
func Merge(a, b Summary) Summary {
	out := Summary{
		UserID:            a.UserID,
		WindowStart:       a.WindowStart,
		WindowEnd:         a.WindowEnd,
		PerDayCounts:      make(map[string]int64),
		PerCategoryCounts: make(map[string]int64),
	}
	if out.UserID == "" {
		out.UserID = b.UserID
	}
	if b.WindowStart.Before(out.WindowStart) {
		out.WindowStart = b.WindowStart
	}
	if b.WindowEnd.After(out.WindowEnd) {
		out.WindowEnd = b.WindowEnd
	}

	var totalBytes int64
	for _, s := range []Summary{a, b} {
		out.TotalCount += s.TotalCount
		totalBytes += s.AvgArtifactBytes * s.TotalCount
		for k, v := range s.PerDayCounts {
			out.PerDayCounts[k] += v
		}
		for k, v := range s.PerCategoryCounts {
			out.PerCategoryCounts[k] += v
		}
	}
	if out.TotalCount > 0 {
		out.AvgArtifactBytes = totalBytes / out.TotalCount
	}

	return out
}
