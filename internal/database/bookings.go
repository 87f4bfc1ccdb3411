package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"frontdesk/internal/models"
)

// FindOverlapping returns busy intervals from pending and confirmed bookings
// that intersect [from, to). Pending rows count as busy so a booking mid-commit
// is never offered to another caller.
func (db *DB) FindOverlapping(ctx context.Context, from, to time.Time) ([]models.BusyInterval, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT start_time, end_time FROM bookings
		WHERE status IN ('pending', 'confirmed')
		  AND start_time < ? AND end_time > ?
		ORDER BY start_time`,
		to.UTC(), from.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query overlapping bookings: %w", err)
	}
	defer rows.Close()

	var busy []models.BusyInterval
	for rows.Next() {
		var b models.BusyInterval
		if err := rows.Scan(&b.Start, &b.End); err != nil {
			return nil, fmt.Errorf("scan busy interval: %w", err)
		}
		busy = append(busy, b)
	}
	return busy, rows.Err()
}

// InsertPending persists a new booking in pending status and returns its ID.
func (db *DB) InsertPending(ctx context.Context, b *models.Booking) (int64, error) {
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, `
		INSERT INTO bookings (
			reference, guest_name, guest_phone, guest_email, description,
			start_time, end_time, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Reference,
		b.GuestName,
		b.GuestPhone,
		b.GuestEmail,
		b.Description,
		b.Slot.Start.UTC(),
		b.Slot.End.UTC(),
		models.StatusPending,
		now,
		now,
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return 0, ErrAlreadyExists
		}
		return 0, fmt.Errorf("insert booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last id: %w", err)
	}

	b.ID = id
	b.Status = models.StatusPending
	b.CreatedAt = now
	b.UpdatedAt = now
	return id, nil
}

// MarkConfirmed transitions a pending booking to confirmed.
func (db *DB) MarkConfirmed(ctx context.Context, id int64) error {
	return db.setStatus(ctx, id, models.StatusConfirmed, models.StatusPending)
}

// MarkCancelled transitions a confirmed booking to cancelled, freeing its slot.
func (db *DB) MarkCancelled(ctx context.Context, id int64) error {
	return db.setStatus(ctx, id, models.StatusCancelled, models.StatusConfirmed)
}

func (db *DB) setStatus(ctx context.Context, id int64, status, fromStatus string) error {
	result, err := db.ExecContext(ctx, `
		UPDATE bookings SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		status, time.Now().UTC(), id, fromStatus,
	)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Discard removes a pending booking that never completed its commit sequence.
// Discarded bookings were never visible to callers.
func (db *DB) Discard(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM bookings WHERE id = ? AND status = ?`,
		id, models.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("discard booking: %w", err)
	}
	return nil
}

// SetCalendarEventID records the mirrored calendar event on the booking.
func (db *DB) SetCalendarEventID(ctx context.Context, id int64, eventID string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE bookings SET calendar_event_id = ?, updated_at = ? WHERE id = ?`,
		eventID, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set calendar event id: %w", err)
	}
	return nil
}

// GetBooking returns a booking by ID.
func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return db.getBooking(ctx, "id = ?", id)
}

// GetBookingByReference returns a booking by its external reference.
func (db *DB) GetBookingByReference(ctx context.Context, ref string) (*models.Booking, error) {
	return db.getBooking(ctx, "reference = ?", ref)
}

func (db *DB) getBooking(ctx context.Context, where string, arg any) (*models.Booking, error) {
	var b models.Booking
	var email, description, eventID sql.NullString
	err := db.QueryRowContext(ctx, `
		SELECT id, reference, guest_name, guest_phone, guest_email, description,
		       start_time, end_time, calendar_event_id, status, created_at, updated_at
		FROM bookings WHERE `+where,
		arg,
	).Scan(
		&b.ID, &b.Reference, &b.GuestName, &b.GuestPhone, &email, &description,
		&b.Slot.Start, &b.Slot.End, &eventID, &b.Status, &b.CreatedAt, &b.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	b.GuestEmail = email.String
	b.Description = description.String
	b.CalendarEventID = eventID.String
	return &b, nil
}

// ListUpcoming returns confirmed bookings starting within [from, from+days),
// ordered by start time.
func (db *DB) ListUpcoming(ctx context.Context, from time.Time, days int) ([]models.Booking, error) {
	to := from.AddDate(0, 0, days)
	rows, err := db.QueryContext(ctx, `
		SELECT id, reference, guest_name, guest_phone, guest_email, description,
		       start_time, end_time, calendar_event_id, status, created_at, updated_at
		FROM bookings
		WHERE status = 'confirmed' AND start_time >= ? AND start_time < ?
		ORDER BY start_time`,
		from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query upcoming bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		var b models.Booking
		var email, description, eventID sql.NullString
		if err := rows.Scan(
			&b.ID, &b.Reference, &b.GuestName, &b.GuestPhone, &email, &description,
			&b.Slot.Start, &b.Slot.End, &eventID, &b.Status, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		b.GuestEmail = email.String
		b.Description = description.String
		b.CalendarEventID = eventID.String
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
