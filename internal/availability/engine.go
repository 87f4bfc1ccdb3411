// Package availability computes truthful bookable slots from business rules,
// the durable booking store and the external calendar.
package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"frontdesk/internal/config"
	"frontdesk/internal/models"
)

var ErrInvalidDuration = errors.New("duration must be a positive multiple of the slot granularity")

// BookingSource provides busy intervals from confirmed bookings.
type BookingSource interface {
	FindOverlapping(ctx context.Context, from, to time.Time) ([]models.BusyInterval, error)
}

// CalendarSource provides busy intervals from the external calendar.
type CalendarSource interface {
	ListBusyIntervals(ctx context.Context, from, to time.Time) ([]models.BusyInterval, error)
}

// Engine derives available slots. It has no side effects; results are a
// best-effort snapshot of store and calendar state, not a reservation.
type Engine struct {
	rules    config.Scheduling
	store    BookingSource
	calendar CalendarSource
	now      func() time.Time
}

// NewEngine creates an availability engine.
func NewEngine(rules config.Scheduling, store BookingSource, calendar CalendarSource) *Engine {
	return &Engine{
		rules:    rules,
		store:    store,
		calendar: calendar,
		now:      time.Now,
	}
}

// ListAvailableSlots returns the open slots of the given duration on the given
// calendar date, ascending by start time. The date's time component is ignored.
// Non-business days, fully booked days and days entirely in the past yield an
// empty result.
func (e *Engine) ListAvailableSlots(ctx context.Context, date time.Time, duration time.Duration) ([]models.TimeSlot, error) {
	if duration <= 0 {
		duration = e.rules.SlotDuration()
	}
	if duration%e.rules.Granularity() != 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDuration, duration)
	}

	if !e.rules.IsBusinessDay(date.In(e.rules.Location()).Weekday()) {
		return nil, nil
	}

	open, closeAt := e.rules.DayWindow(date)

	busy, err := e.busyIntervals(ctx, open, closeAt)
	if err != nil {
		return nil, err
	}

	now := e.now()
	var slots []models.TimeSlot
	for cursor := open; !cursor.Add(duration).After(closeAt); cursor = cursor.Add(e.rules.Granularity()) {
		slot := models.TimeSlot{Start: cursor, End: cursor.Add(duration)}

		if slot.Start.Before(now) {
			continue
		}
		if blocked(slot, busy) {
			continue
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// ListAvailableDates returns upcoming business days that have at least one
// open slot of the default duration, scanning horizonDays calendar days
// starting today. A date with zero actual availability is never returned.
func (e *Engine) ListAvailableDates(ctx context.Context, horizonDays int) ([]time.Time, error) {
	if horizonDays <= 0 {
		horizonDays = e.rules.HorizonDays
	}

	loc := e.rules.Location()
	now := e.now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	var dates []time.Time
	for i := 0; i < horizonDays; i++ {
		d := today.AddDate(0, 0, i)
		if !e.rules.IsBusinessDay(d.Weekday()) {
			continue
		}

		slots, err := e.ListAvailableSlots(ctx, d, e.rules.SlotDuration())
		if err != nil {
			return nil, err
		}
		if len(slots) == 0 {
			continue
		}

		dates = append(dates, d)
		if e.rules.MaxDates > 0 && len(dates) >= e.rules.MaxDates {
			break
		}
	}
	return dates, nil
}

// busyIntervals merges store and calendar busy time for [from, to). Both
// sources are treated as busy; the store alone decides conflicts at commit
// time, but the read path must never offer a slot either source occupies.
func (e *Engine) busyIntervals(ctx context.Context, from, to time.Time) ([]models.BusyInterval, error) {
	busy, err := e.store.FindOverlapping(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("booking store busy intervals: %w", err)
	}

	if e.calendar != nil {
		external, err := e.calendar.ListBusyIntervals(ctx, from, to)
		if err != nil {
			return nil, fmt.Errorf("calendar busy intervals: %w", err)
		}
		busy = append(busy, external...)
	}
	return busy, nil
}

func blocked(slot models.TimeSlot, busy []models.BusyInterval) bool {
	for _, b := range busy {
		if b.Blocks(slot) {
			return true
		}
	}
	return false
}
