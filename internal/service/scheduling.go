// Package service exposes the three scheduling operations to the calling
// agent: check availability, book an appointment, list available dates.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"frontdesk/internal/cache"
	"frontdesk/internal/config"
	"frontdesk/internal/models"
	"frontdesk/internal/reservation"
)

// Engine computes availability.
type Engine interface {
	ListAvailableSlots(ctx context.Context, date time.Time, duration time.Duration) ([]models.TimeSlot, error)
	ListAvailableDates(ctx context.Context, horizonDays int) ([]time.Time, error)
}

// Reservations commits and cancels bookings.
type Reservations interface {
	BookSlot(ctx context.Context, req reservation.Request) (*reservation.Result, error)
	CancelBooking(ctx context.Context, reference string) error
}

// BookingReader reads confirmed bookings.
type BookingReader interface {
	ListUpcoming(ctx context.Context, from time.Time, days int) ([]models.Booking, error)
}

// BookingInput is a booking request as received from the caller. Timestamps
// are RFC 3339 strings and must carry an explicit timezone offset; the system
// never assumes a default timezone for caller input.
type BookingInput struct {
	GuestName   string
	GuestPhone  string
	GuestEmail  string
	Description string
	StartTime   string
	EndTime     string
}

// BookingOutcome reports an unambiguous booking result. Status is always
// "confirmed" here; failed attempts surface as errors.
type BookingOutcome struct {
	Reference       string
	BookingID       int64
	Status          string
	StartTime       time.Time
	CalendarEventID string
	CalendarSynced  bool
}

// Scheduler is the composition root for the scheduling operations.
type Scheduler struct {
	rules        config.Scheduling
	engine       Engine
	reservations Reservations
	bookings     BookingReader
	cache        *cache.Availability
	log          *zerolog.Logger
}

// NewScheduler creates the service façade. cache may be nil.
func NewScheduler(rules config.Scheduling, engine Engine, reservations Reservations, bookings BookingReader, avCache *cache.Availability, log *zerolog.Logger) *Scheduler {
	return &Scheduler{
		rules:        rules,
		engine:       engine,
		reservations: reservations,
		bookings:     bookings,
		cache:        avCache,
		log:          log,
	}
}

// CheckAvailability returns the open slots for a calendar date (YYYY-MM-DD,
// interpreted in the business timezone). Reads are advisory and may be served
// from a short-lived cache; a returned slot is a snapshot, not a reservation.
func (s *Scheduler) CheckAvailability(ctx context.Context, dateStr string, durationMinutes int) ([]models.TimeSlot, error) {
	date, err := s.parseDate(dateStr)
	if err != nil {
		return nil, err
	}
	if durationMinutes <= 0 {
		durationMinutes = s.rules.SlotMinutes
	}

	key := cache.SlotsKey(date.Format("2006-01-02"), durationMinutes)
	var cached []models.TimeSlot
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	slots, err := s.engine.ListAvailableSlots(ctx, date, time.Duration(durationMinutes)*time.Minute)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, key, slots)
	return slots, nil
}

// AvailableDates returns upcoming business days with at least one open slot.
func (s *Scheduler) AvailableDates(ctx context.Context, horizonDays int) ([]time.Time, error) {
	if horizonDays <= 0 {
		horizonDays = s.rules.HorizonDays
	}

	key := cache.DatesKey(horizonDays)
	var cached []time.Time
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	dates, err := s.engine.ListAvailableDates(ctx, horizonDays)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, key, dates)
	return dates, nil
}

// BookAppointment validates and normalizes the input, then attempts the
// reservation. The response never exposes a pending state: the booking is
// either confirmed or the error says why not.
func (s *Scheduler) BookAppointment(ctx context.Context, in BookingInput) (*BookingOutcome, error) {
	start, err := parseTimestamp("start_time", in.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := parseTimestamp("end_time", in.EndTime)
	if err != nil {
		return nil, err
	}

	result, err := s.reservations.BookSlot(ctx, reservation.Request{
		Slot:        models.TimeSlot{Start: start, End: end},
		GuestName:   in.GuestName,
		GuestPhone:  in.GuestPhone,
		GuestEmail:  in.GuestEmail,
		Description: in.Description,
	})
	if err != nil {
		return nil, err
	}

	return &BookingOutcome{
		Reference:       result.Booking.Reference,
		BookingID:       result.Booking.ID,
		Status:          result.Booking.Status,
		StartTime:       result.Booking.Slot.Start,
		CalendarEventID: result.Booking.CalendarEventID,
		CalendarSynced:  result.CalendarSynced,
	}, nil
}

// CancelAppointment frees a confirmed booking's slot.
func (s *Scheduler) CancelAppointment(ctx context.Context, reference string) error {
	if reference == "" {
		return &reservation.ValidationError{Field: "reference", Reason: "required"}
	}
	return s.reservations.CancelBooking(ctx, reference)
}

// UpcomingBookings lists confirmed bookings for the next days.
func (s *Scheduler) UpcomingBookings(ctx context.Context, days int) ([]models.Booking, error) {
	if days <= 0 {
		days = 7
	}
	return s.bookings.ListUpcoming(ctx, time.Now(), days)
}

func (s *Scheduler) parseDate(dateStr string) (time.Time, error) {
	if dateStr == "" {
		return time.Time{}, &reservation.ValidationError{Field: "date", Reason: "required"}
	}
	d, err := time.ParseInLocation("2006-01-02", dateStr, s.rules.Location())
	if err != nil {
		return time.Time{}, &reservation.ValidationError{Field: "date", Reason: "expected YYYY-MM-DD"}
	}
	return d, nil
}

func parseTimestamp(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, &reservation.ValidationError{Field: field, Reason: "required"}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, &reservation.ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("expected RFC 3339 timestamp with timezone offset, got %q", value),
		}
	}
	return t, nil
}
