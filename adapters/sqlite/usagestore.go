package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/inkwellhq/quotad/domain/plan"
	"github.com/inkwellhq/quotad/ports"
)

// UsageStore implements ports.UsageStore using SQLite.
// Increments are serialized by the database, so quota state survives
// restarts and concurrent writers cannot lose updates.
type UsageStore struct {
	db *DB
}

// NewUsageStore creates a new SQLite usage store.
func NewUsageStore(db *DB) *UsageStore {
	return &UsageStore{db: db}
}

// Load retrieves the record for a user.
func (s *UsageStore) Load(ctx context.Context, userID string) (ports.UsageRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, questions_used, daily_limit, plan_id, period_start, last_reset_date, last_updated
		FROM usage_records
		WHERE user_id = ?
	`, userID)

	var rec ports.UsageRecord
	var limit int64
	err := row.Scan(
		&rec.UserID,
		&rec.QuestionsUsed,
		&limit,
		&rec.PlanID,
		&rec.PeriodStart,
		&rec.LastResetDate,
		&rec.LastUpdated,
	)
	if err == sql.ErrNoRows {
		return ports.UsageRecord{}, ports.ErrNotFound
	}
	if err != nil {
		return ports.UsageRecord{}, err
	}

	rec.DailyLimit = plan.Limit(limit)
	return rec, nil
}

// Save stores a record, overwriting any existing one.
func (s *UsageStore) Save(ctx context.Context, rec ports.UsageRecord) error {
	// Timestamps stored in UTC for consistent querying
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_records (user_id, questions_used, daily_limit, plan_id, period_start, last_reset_date, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			questions_used = excluded.questions_used,
			daily_limit = excluded.daily_limit,
			plan_id = excluded.plan_id,
			period_start = excluded.period_start,
			last_reset_date = excluded.last_reset_date,
			last_updated = excluded.last_updated
	`, rec.UserID, rec.QuestionsUsed, int64(rec.DailyLimit), rec.PlanID,
		rec.PeriodStart.UTC(), rec.LastResetDate.UTC(), rec.LastUpdated.UTC())
	return err
}

// AtomicIncrement adds amount to the user's count and returns the new count.
// The single UPDATE statement is the serialization point for concurrent
// callers; it fails loudly when the record is missing instead of creating
// one with an unknown limit.
func (s *UsageStore) AtomicIncrement(ctx context.Context, userID string, amount int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE usage_records
		SET questions_used = questions_used + ?, last_updated = ?
		WHERE user_id = ?
	`, amount, time.Now().UTC(), userID)
	if err != nil {
		return 0, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, ports.ErrNotFound
	}

	// Read back the updated count
	row := s.db.QueryRowContext(ctx, `
		SELECT questions_used FROM usage_records WHERE user_id = ?
	`, userID)
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure interface compliance.
var _ ports.UsageStore = (*UsageStore)(nil)
