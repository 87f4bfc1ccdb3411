package database

import (
	"context"
	"fmt"
	"time"
)

// SyncTask is a queued calendar mirror write awaiting retry.
type SyncTask struct {
	ID        int64
	BookingID int64
	Status    string
	Attempts  int
	LastError string
}

// EnqueueCalendarSync records a booking whose calendar event creation failed.
func (db *DB) EnqueueCalendarSync(ctx context.Context, bookingID int64, lastErr string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO calendar_sync_queue (booking_id, status, attempts, last_error, next_retry_at)
		VALUES (?, 'pending', 0, ?, ?)`,
		bookingID, lastErr, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("enqueue calendar sync: %w", err)
	}
	return nil
}

// DueSyncTasks returns pending tasks whose retry time has arrived.
func (db *DB) DueSyncTasks(ctx context.Context, limit int) ([]SyncTask, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, booking_id, status, attempts, COALESCE(last_error, '')
		FROM calendar_sync_queue
		WHERE status = 'pending' AND next_retry_at <= ?
		ORDER BY next_retry_at
		LIMIT ?`,
		time.Now().UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query sync tasks: %w", err)
	}
	defer rows.Close()

	var tasks []SyncTask
	for rows.Next() {
		var t SyncTask
		if err := rows.Scan(&t.ID, &t.BookingID, &t.Status, &t.Attempts, &t.LastError); err != nil {
			return nil, fmt.Errorf("scan sync task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// MarkSyncDone marks a task as processed.
func (db *DB) MarkSyncDone(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx, `
		UPDATE calendar_sync_queue
		SET status = 'done', processed_at = ?
		WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark sync done: %w", err)
	}
	return nil
}

// MarkSyncRetry schedules another attempt, or parks the task as failed once
// maxAttempts is reached.
func (db *DB) MarkSyncRetry(ctx context.Context, id int64, attempts int, lastErr string, nextRetry time.Time, maxAttempts int) error {
	status := "pending"
	if maxAttempts > 0 && attempts >= maxAttempts {
		status = "failed"
	}
	_, err := db.ExecContext(ctx, `
		UPDATE calendar_sync_queue
		SET status = ?, attempts = ?, last_error = ?, next_retry_at = ?
		WHERE id = ?`,
		status, attempts, lastErr, nextRetry.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark sync retry: %w", err)
	}
	return nil
}
