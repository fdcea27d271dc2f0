package sqlite

import (
	"context"
	"time"

	"github.com/inkwellhq/quotad/domain/usage"
	"github.com/inkwellhq/quotad/ports"
)

// LogStore implements ports.UsageLogStore using SQLite.
type LogStore struct {
	db *DB
}

// NewLogStore creates a new SQLite log store.
func NewLogStore(db *DB) *LogStore {
	return &LogStore{db: db}
}

// Append stores a single log entry.
func (s *LogStore) Append(ctx context.Context, e usage.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_log (id, user_id, plan_id, category, artifact_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.UserID, e.PlanID, e.Category, e.ArtifactBytes, e.Timestamp.UTC())
	return err
}

// ListByUser returns entries for a user within [start, end), oldest first.
func (s *LogStore) ListByUser(ctx context.Context, userID string, start, end time.Time) ([]usage.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, plan_id, category, artifact_bytes, created_at
		FROM usage_log
		WHERE user_id = ? AND created_at >= ? AND created_at < ?
		ORDER BY created_at ASC
	`, userID, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []usage.Entry
	for rows.Next() {
		var e usage.Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.PlanID, &e.Category, &e.ArtifactBytes, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Ensure interface compliance.
var _ ports.UsageLogStore = (*LogStore)(nil)
