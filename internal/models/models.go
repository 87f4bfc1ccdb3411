package models

import "time"

// Booking statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// TimeSlot is a bookable time interval. End is exclusive.
type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns the slot length.
func (s TimeSlot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Overlaps reports whether two half-open intervals [Start, End) intersect.
func (s TimeSlot) Overlaps(other TimeSlot) bool {
	return s.Start.Before(other.End) && other.Start.Before(s.End)
}

// BusyInterval is an occupied time range, from a confirmed booking or an
// external calendar event. It is a derived read-only view, never persisted.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Blocks reports whether the interval makes the given slot unavailable.
func (b BusyInterval) Blocks(slot TimeSlot) bool {
	return b.Start.Before(slot.End) && slot.Start.Before(b.End)
}

// Booking represents an appointment record.
type Booking struct {
	ID              int64     `json:"id"`
	Reference       string    `json:"reference"` // stable external ID (uuid)
	GuestName       string    `json:"guest_name"`
	GuestPhone      string    `json:"guest_phone"`
	GuestEmail      string    `json:"guest_email,omitempty"`
	Description     string    `json:"description,omitempty"`
	Slot            TimeSlot  `json:"slot"`
	CalendarEventID string    `json:"calendar_event_id,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsActive reports whether the booking still occupies its slot.
func (b *Booking) IsActive() bool {
	return b.Status == StatusPending || b.Status == StatusConfirmed
}

// OverlapsWith checks if this booking's slot overlaps another booking's slot.
func (b *Booking) OverlapsWith(other *Booking) bool {
	return b.Slot.Overlaps(other.Slot)
}

// BusyIntervalsFrom collects busy intervals from the active bookings in bs.
func BusyIntervalsFrom(bs []Booking) []BusyInterval {
	var busy []BusyInterval
	for i := range bs {
		if !bs[i].IsActive() {
			continue
		}
		busy = append(busy, BusyInterval{Start: bs[i].Slot.Start, End: bs[i].Slot.End})
	}
	return busy
}
