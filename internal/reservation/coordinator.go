// Package reservation commits bookings under an exclusive per-date section so
// that at most one confirmed booking can ever occupy a time range.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"frontdesk/internal/config"
	"frontdesk/internal/metrics"
	"frontdesk/internal/models"
)

var (
	// ErrConflict means the slot was taken between the availability check and
	// the commit. A normal outcome; the caller should re-query and offer
	// alternatives.
	ErrConflict = errors.New("slot is no longer available")

	// ErrLockTimeout means the exclusive section could not be acquired in
	// time. Retryable; no state was changed.
	ErrLockTimeout = errors.New("could not acquire booking lock")

	// ErrStoreUnavailable means the booking store could not be read or
	// written. Retryable; no pending booking is left visible.
	ErrStoreUnavailable = errors.New("booking store unavailable")
)

// ValidationError reports a malformed booking request. No state was changed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// BookingStore is the durable record of bookings, authoritative for conflicts.
type BookingStore interface {
	FindOverlapping(ctx context.Context, from, to time.Time) ([]models.BusyInterval, error)
	InsertPending(ctx context.Context, b *models.Booking) (int64, error)
	MarkConfirmed(ctx context.Context, id int64) error
	MarkCancelled(ctx context.Context, id int64) error
	Discard(ctx context.Context, id int64) error
	SetCalendarEventID(ctx context.Context, id int64, eventID string) error
	GetBookingByReference(ctx context.Context, ref string) (*models.Booking, error)
	EnqueueCalendarSync(ctx context.Context, bookingID int64, lastErr string) error
}

// CalendarGateway mirrors bookings into the shared external calendar.
type CalendarGateway interface {
	ListBusyIntervals(ctx context.Context, from, to time.Time) ([]models.BusyInterval, error)
	CreateEvent(ctx context.Context, b *models.Booking) (string, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// Publisher emits domain events.
type Publisher interface {
	PublishJSON(eventType string, payload any) error
}

// Invalidator drops cached availability for a date after a write.
type Invalidator interface {
	InvalidateDate(ctx context.Context, date time.Time)
}

// Request carries the caller-supplied booking details.
type Request struct {
	Slot        models.TimeSlot
	GuestName   string
	GuestPhone  string
	GuestEmail  string
	Description string
}

// Result is a committed booking. CalendarSynced is false when the store write
// succeeded but the calendar mirror did not; the booking is still confirmed
// and the mirror is reconciled in the background.
type Result struct {
	Booking        *models.Booking
	CalendarSynced bool
}

// Coordinator serializes concurrent booking attempts and performs the
// check-then-write sequence atomically per date.
type Coordinator struct {
	rules    config.Scheduling
	store    BookingStore
	calendar CalendarGateway
	events   Publisher
	cache    Invalidator
	locks    *dateLocks
	log      *zerolog.Logger
	now      func() time.Time
}

// NewCoordinator creates a reservation coordinator. events and cache may be nil.
func NewCoordinator(rules config.Scheduling, store BookingStore, calendar CalendarGateway, events Publisher, cache Invalidator, log *zerolog.Logger) *Coordinator {
	return &Coordinator{
		rules:    rules,
		store:    store,
		calendar: calendar,
		events:   events,
		cache:    cache,
		locks:    newDateLocks(),
		log:      log,
		now:      time.Now,
	}
}

// BookSlot reserves the slot exclusively for one caller. It holds the date's
// exclusive section for the full read-check-write sequence, so a slot shown as
// available by a concurrent read can still come back ErrConflict here.
func (c *Coordinator) BookSlot(ctx context.Context, req Request) (*Result, error) {
	if err := c.validate(req); err != nil {
		return nil, err
	}

	dateKey := req.Slot.Start.In(c.rules.Location()).Format("2006-01-02")
	release, err := c.locks.acquire(ctx, dateKey, c.rules.LockTimeout())
	if err != nil {
		if errors.Is(err, ErrLockTimeout) {
			metrics.IncBookingRejected("lock_timeout")
		}
		return nil, err
	}
	defer release()

	if err := c.recheckConflicts(ctx, req.Slot); err != nil {
		return nil, err
	}

	booking := &models.Booking{
		Reference:   uuid.NewString(),
		GuestName:   strings.TrimSpace(req.GuestName),
		GuestPhone:  strings.TrimSpace(req.GuestPhone),
		GuestEmail:  strings.TrimSpace(req.GuestEmail),
		Description: req.Description,
		Slot:        req.Slot,
	}

	id, err := c.store.InsertPending(ctx, booking)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	eventID, calErr := c.createEvent(ctx, booking)

	if err := c.store.MarkConfirmed(ctx, id); err != nil {
		// The pending row must never become visible; drop it and undo the
		// mirror write if one happened.
		if derr := c.store.Discard(ctx, id); derr != nil {
			c.log.Error().Err(derr).Int64("booking_id", id).Msg("failed to discard pending booking")
		}
		if eventID != "" {
			if cerr := c.calendar.DeleteEvent(ctx, eventID); cerr != nil {
				c.log.Error().Err(cerr).Str("event_id", eventID).Msg("failed to delete orphaned calendar event")
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	booking.Status = models.StatusConfirmed

	synced := calErr == nil
	if synced {
		booking.CalendarEventID = eventID
		if err := c.store.SetCalendarEventID(ctx, id, eventID); err != nil {
			c.log.Error().Err(err).Int64("booking_id", id).Msg("failed to record calendar event id")
		}
	} else {
		c.log.Warn().Err(calErr).
			Int64("booking_id", id).
			Str("reference", booking.Reference).
			Msg("calendar mirror write failed; booking confirmed, queued for reconciliation")
		metrics.IncCalendarSyncFailure()
		if err := c.store.EnqueueCalendarSync(ctx, id, calErr.Error()); err != nil {
			c.log.Error().Err(err).Int64("booking_id", id).Msg("failed to enqueue calendar sync")
		}
		c.publish("calendar.sync_failed", map[string]any{
			"booking_id": id,
			"reference":  booking.Reference,
			"error":      calErr.Error(),
		})
	}

	metrics.IncBookingCreated(models.StatusConfirmed)
	c.publish("booking.confirmed", booking)
	c.invalidate(ctx, req.Slot.Start)

	c.log.Info().
		Int64("booking_id", id).
		Str("reference", booking.Reference).
		Time("start", booking.Slot.Start).
		Bool("calendar_synced", synced).
		Msg("booking confirmed")

	return &Result{Booking: booking, CalendarSynced: synced}, nil
}

// CancelBooking frees a confirmed booking's slot and removes the mirror event.
func (c *Coordinator) CancelBooking(ctx context.Context, reference string) error {
	booking, err := c.store.GetBookingByReference(ctx, reference)
	if err != nil {
		return err
	}
	if booking.Status != models.StatusConfirmed {
		return &ValidationError{Field: "reference", Reason: "booking is not confirmed"}
	}

	if err := c.store.MarkCancelled(ctx, booking.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if booking.CalendarEventID != "" {
		if err := c.calendar.DeleteEvent(ctx, booking.CalendarEventID); err != nil {
			c.log.Warn().Err(err).
				Str("event_id", booking.CalendarEventID).
				Msg("failed to delete calendar event for cancelled booking")
		}
	}

	metrics.IncBookingCancelled()
	c.publish("booking.cancelled", booking)
	c.invalidate(ctx, booking.Slot.Start)
	return nil
}

// recheckConflicts re-runs the overlap test inside the critical section. The
// store is authoritative; a calendar read failure here is logged and the check
// proceeds store-only rather than blocking the booking on the mirror.
func (c *Coordinator) recheckConflicts(ctx context.Context, slot models.TimeSlot) error {
	busy, err := c.store.FindOverlapping(ctx, slot.Start, slot.End)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if c.calendar != nil {
		external, err := c.calendar.ListBusyIntervals(ctx, slot.Start, slot.End)
		if err != nil {
			c.log.Warn().Err(err).Msg("calendar unreachable during final conflict check")
		} else {
			busy = append(busy, external...)
		}
	}

	for _, b := range busy {
		if b.Blocks(slot) {
			metrics.IncBookingRejected("conflict")
			return ErrConflict
		}
	}
	return nil
}

func (c *Coordinator) createEvent(ctx context.Context, b *models.Booking) (string, error) {
	if c.calendar == nil {
		return "", errors.New("no calendar gateway configured")
	}
	return c.calendar.CreateEvent(ctx, b)
}

func (c *Coordinator) validate(req Request) error {
	if strings.TrimSpace(req.GuestName) == "" {
		return &ValidationError{Field: "guest_name", Reason: "required"}
	}
	if strings.TrimSpace(req.GuestPhone) == "" {
		return &ValidationError{Field: "guest_phone", Reason: "required"}
	}
	if email := strings.TrimSpace(req.GuestEmail); email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return &ValidationError{Field: "guest_email", Reason: "not a valid address"}
		}
	}

	slot := req.Slot
	if !slot.End.After(slot.Start) {
		return &ValidationError{Field: "slot", Reason: "end must be after start"}
	}
	if slot.Duration()%c.rules.Granularity() != 0 {
		return &ValidationError{Field: "slot", Reason: "duration must be a multiple of the slot granularity"}
	}
	if slot.Start.Before(c.now()) {
		return &ValidationError{Field: "slot", Reason: "slot is in the past"}
	}

	localStart := slot.Start.In(c.rules.Location())
	if !c.rules.IsBusinessDay(localStart.Weekday()) {
		return &ValidationError{Field: "slot", Reason: "not a business day"}
	}
	open, closeAt := c.rules.DayWindow(localStart)
	if slot.Start.Before(open) || slot.End.After(closeAt) {
		return &ValidationError{Field: "slot", Reason: "outside business hours"}
	}
	if slot.Start.Sub(open)%c.rules.Granularity() != 0 {
		return &ValidationError{Field: "slot", Reason: "start is not aligned to the slot granularity"}
	}
	return nil
}

func (c *Coordinator) publish(eventType string, payload any) {
	if c.events == nil {
		return
	}
	if err := c.events.PublishJSON(eventType, payload); err != nil {
		c.log.Debug().Err(err).Str("event", eventType).Msg("event publish failed")
	}
}

// invalidate drops cached listings for the booking's business-timezone date.
// Formatting the UTC instant directly would key the wrong date for offsets
// that cross midnight.
func (c *Coordinator) invalidate(ctx context.Context, date time.Time) {
	if c.cache != nil {
		c.cache.InvalidateDate(ctx, date.In(c.rules.Location()))
	}
}
