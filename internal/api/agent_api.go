package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"frontdesk/internal/availability"
	"frontdesk/internal/database"
	"frontdesk/internal/metrics"
	"frontdesk/internal/models"
	"frontdesk/internal/reservation"
	"frontdesk/internal/service"
)

// CheckAvailabilityRequest is the request body for POST /api/agent/check-availability.
type CheckAvailabilityRequest struct {
	Date            string `json:"date"`                       // Format: YYYY-MM-DD
	DurationMinutes int    `json:"duration_minutes,omitempty"` // Defaults to the standard slot length
}

// SlotResponse is a single open slot. Display is phrased for reading aloud.
type SlotResponse struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Display   string `json:"display"`
}

// CheckAvailabilityResponse is the response for POST /api/agent/check-availability.
type CheckAvailabilityResponse struct {
	Date  string         `json:"date"`
	Slots []SlotResponse `json:"slots"`
	Count int            `json:"count"`
}

// BookAppointmentRequest is the request body for POST /api/agent/book-appointment.
// Timestamps are RFC 3339 with an explicit timezone offset.
type BookAppointmentRequest struct {
	GuestName   string `json:"guest_name"`
	GuestPhone  string `json:"guest_phone"`
	GuestEmail  string `json:"guest_email,omitempty"`
	Description string `json:"description,omitempty"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
}

// BookAppointmentResponse is the response for POST /api/agent/book-appointment.
type BookAppointmentResponse struct {
	Success        bool   `json:"success"`
	Reference      string `json:"reference,omitempty"`
	BookingID      int64  `json:"booking_id,omitempty"`
	Status         string `json:"status,omitempty"`
	CalendarSynced bool   `json:"calendar_synced,omitempty"`
	Display        string `json:"display,omitempty"`
	Error          string `json:"error,omitempty"`
	Retryable      bool   `json:"retryable,omitempty"`
}

// DateResponse is a bookable date with a spoken-friendly label.
type DateResponse struct {
	Date    string `json:"date"`
	Display string `json:"display"`
}

// BookingResponse is a confirmed booking in list responses.
type BookingResponse struct {
	Reference string `json:"reference"`
	GuestName string `json:"guest_name"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Status    string `json:"status"`
	Display   string `json:"display"`
}

// handleCheckAvailability returns open slots for a date.
// POST /api/agent/check-availability
func (s *HTTPServer) handleCheckAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("check_availability")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req CheckAvailabilityRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	slots, err := s.scheduler.CheckAvailability(r.Context(), req.Date, req.DurationMinutes)
	if err != nil {
		s.respondError(w, err)
		return
	}

	// Keep spoken lists short for the voice channel.
	if max := s.rules.MaxSlotsPerDay; max > 0 && len(slots) > max {
		slots = slots[:max]
	}

	resp := CheckAvailabilityResponse{
		Date:  req.Date,
		Slots: make([]SlotResponse, 0, len(slots)),
	}
	for _, slot := range slots {
		resp.Slots = append(resp.Slots, SlotResponse{
			StartTime: slot.Start.Format(time.RFC3339),
			EndTime:   slot.End.Format(time.RFC3339),
			Display:   s.slotDisplay(slot),
		})
	}
	resp.Count = len(resp.Slots)

	writeJSON(w, http.StatusOK, resp)
}

// handleBookAppointment attempts to reserve and confirm a slot.
// POST /api/agent/book-appointment
func (s *HTTPServer) handleBookAppointment(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("book_appointment")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req BookAppointmentRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	outcome, err := s.scheduler.BookAppointment(r.Context(), service.BookingInput{
		GuestName:   req.GuestName,
		GuestPhone:  req.GuestPhone,
		GuestEmail:  req.GuestEmail,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	})
	if err != nil {
		s.respondBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BookAppointmentResponse{
		Success:        true,
		Reference:      outcome.Reference,
		BookingID:      outcome.BookingID,
		Status:         outcome.Status,
		CalendarSynced: outcome.CalendarSynced,
		Display:        s.timeDisplay(outcome.StartTime),
	})
}

// handleAvailableDates returns upcoming dates with open slots.
// GET /api/agent/available-dates?days=N
func (s *HTTPServer) handleAvailableDates(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("available_dates")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	days := 0
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid days parameter")
			return
		}
		days = n
	}

	dates, err := s.scheduler.AvailableDates(r.Context(), days)
	if err != nil {
		s.respondError(w, err)
		return
	}

	resp := make([]DateResponse, 0, len(dates))
	for _, d := range dates {
		local := d.In(s.rules.Location())
		resp = append(resp, DateResponse{
			Date:    local.Format("2006-01-02"),
			Display: local.Format("Monday, January 2"),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"dates": resp})
}

// handleUpcoming lists confirmed bookings for the coming days.
// GET /api/agent/upcoming?days=N
func (s *HTTPServer) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("upcoming")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	days := 0
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid days parameter")
			return
		}
		days = n
	}

	bookings, err := s.scheduler.UpcomingBookings(r.Context(), days)
	if err != nil {
		s.respondError(w, err)
		return
	}

	resp := make([]BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		resp = append(resp, BookingResponse{
			Reference: b.Reference,
			GuestName: b.GuestName,
			StartTime: b.Slot.Start.Format(time.RFC3339),
			EndTime:   b.Slot.End.Format(time.RFC3339),
			Status:    b.Status,
			Display:   s.timeDisplay(b.Slot.Start),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"bookings": resp})
}

// handleCancelBooking frees a booked slot.
// DELETE /api/agent/bookings/{reference}
func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cancel_booking")
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	const prefix = "/api/agent/bookings/"
	reference := r.URL.Path[len(prefix):]
	if reference == "" {
		writeError(w, http.StatusBadRequest, "reference is required")
		return
	}

	if err := s.scheduler.CancelAppointment(r.Context(), reference); err != nil {
		s.respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// respondBookingError maps reservation failures onto the booking response
// shape so the agent always gets a speakable error field.
func (s *HTTPServer) respondBookingError(w http.ResponseWriter, err error) {
	var ve *reservation.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, BookAppointmentResponse{Success: false, Error: ve.Error()})
	case errors.Is(err, reservation.ErrConflict):
		writeJSON(w, http.StatusConflict, BookAppointmentResponse{
			Success: false,
			Error:   "that time is no longer available; please pick another slot",
		})
	case errors.Is(err, reservation.ErrLockTimeout), errors.Is(err, reservation.ErrStoreUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, BookAppointmentResponse{
			Success:   false,
			Error:     "the scheduling system is busy; please try again",
			Retryable: true,
		})
	default:
		s.log.Error().Err(err).Msg("booking failed")
		writeJSON(w, http.StatusInternalServerError, BookAppointmentResponse{
			Success: false,
			Error:   "internal error",
		})
	}
}

func (s *HTTPServer) respondError(w http.ResponseWriter, err error) {
	var ve *reservation.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, availability.ErrInvalidDuration):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "booking not found")
	case errors.Is(err, reservation.ErrLockTimeout), errors.Is(err, reservation.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "the scheduling system is busy; please try again")
	default:
		s.log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *HTTPServer) slotDisplay(slot models.TimeSlot) string {
	return s.timeDisplay(slot.Start)
}

func (s *HTTPServer) timeDisplay(t time.Time) string {
	return t.In(s.rules.Location()).Format("Monday, January 2 at 3:04 PM")
}
