package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func slot(startHour, endHour int) TimeSlot {
	day := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	return TimeSlot{
		Start: day.Add(time.Duration(startHour) * time.Hour),
		End:   day.Add(time.Duration(endHour) * time.Hour),
	}
}

func TestTimeSlot_Overlaps(t *testing.T) {
	t.Run("partial overlap", func(t *testing.T) {
		assert.True(t, slot(9, 11).Overlaps(slot(10, 12)))
		assert.True(t, slot(10, 12).Overlaps(slot(9, 11)))
	})

	t.Run("containment", func(t *testing.T) {
		assert.True(t, slot(9, 17).Overlaps(slot(10, 11)))
		assert.True(t, slot(10, 11).Overlaps(slot(9, 17)))
	})

	t.Run("identical", func(t *testing.T) {
		assert.True(t, slot(9, 10).Overlaps(slot(9, 10)))
	})

	t.Run("back to back is not an overlap", func(t *testing.T) {
		assert.False(t, slot(9, 10).Overlaps(slot(10, 11)))
		assert.False(t, slot(10, 11).Overlaps(slot(9, 10)))
	})

	t.Run("disjoint", func(t *testing.T) {
		assert.False(t, slot(9, 10).Overlaps(slot(14, 15)))
	})
}

func TestBusyInterval_Blocks(t *testing.T) {
	busy := BusyInterval{Start: slot(10, 11).Start, End: slot(10, 11).End}

	assert.True(t, busy.Blocks(slot(10, 11)))
	assert.True(t, busy.Blocks(slot(9, 11)))
	assert.False(t, busy.Blocks(slot(9, 10)), "slot ending at busy start must not be blocked")
	assert.False(t, busy.Blocks(slot(11, 12)), "slot starting at busy end must not be blocked")
}

func TestBooking_IsActive(t *testing.T) {
	for status, want := range map[string]bool{
		StatusPending:   true,
		StatusConfirmed: true,
		StatusCancelled: false,
	} {
		b := &Booking{Status: status}
		assert.Equal(t, want, b.IsActive(), "status %s", status)
	}
}

func TestBusyIntervalsFrom(t *testing.T) {
	bookings := []Booking{
		{Status: StatusConfirmed, Slot: slot(9, 10)},
		{Status: StatusCancelled, Slot: slot(10, 11)},
		{Status: StatusPending, Slot: slot(11, 12)},
	}

	busy := BusyIntervalsFrom(bookings)
	assert.Len(t, busy, 2)
	assert.Equal(t, bookings[0].Slot.Start, busy[0].Start)
	assert.Equal(t, bookings[2].Slot.End, busy[1].End)
}
