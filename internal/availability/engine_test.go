package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frontdesk/internal/config"
	"frontdesk/internal/models"
)

type fakeSource struct {
	busy []models.BusyInterval
	err  error
}

func (f *fakeSource) FindOverlapping(_ context.Context, _, _ time.Time) ([]models.BusyInterval, error) {
	return f.busy, f.err
}

func (f *fakeSource) ListBusyIntervals(_ context.Context, _, _ time.Time) ([]models.BusyInterval, error) {
	return f.busy, f.err
}

func testRules(t *testing.T) config.Scheduling {
	t.Helper()
	rules := config.Scheduling{
		Timezone:           "UTC",
		DaysOfWeek:         []int{1, 2, 3, 4, 5},
		OpenTime:           "09:00",
		CloseTime:          "18:00",
		SlotMinutes:        60,
		GranularityMinutes: 30,
		HorizonDays:        14,
	}
	require.NoError(t, rules.Normalize())
	return rules
}

// monday is a business day fully in the future relative to fixedNow.
var (
	monday   = time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	fixedNow = time.Date(2026, 9, 7, 8, 0, 0, 0, time.UTC)
)

func newTestEngine(t *testing.T, store, cal *fakeSource) *Engine {
	e := NewEngine(testRules(t), store, cal)
	e.now = func() time.Time { return fixedNow }
	return e
}

func at(day time.Time, hour, min int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, min, 0, 0, time.UTC)
}

func TestListAvailableSlots_EmptyDay(t *testing.T) {
	e := newTestEngine(t, &fakeSource{}, &fakeSource{})

	slots, err := e.ListAvailableSlots(context.Background(), monday, time.Hour)
	require.NoError(t, err)

	// 60-minute slots at 30-minute boundaries between 09:00 and 18:00:
	// starts 09:00 through 17:00 inclusive.
	require.Len(t, slots, 17)
	assert.Equal(t, at(monday, 9, 0), slots[0].Start)
	assert.Equal(t, at(monday, 17, 0), slots[len(slots)-1].Start)
	assert.Equal(t, at(monday, 18, 0), slots[len(slots)-1].End)
}

func TestListAvailableSlots_ExcludesBookedTime(t *testing.T) {
	store := &fakeSource{busy: []models.BusyInterval{
		{Start: at(monday, 10, 0), End: at(monday, 11, 0)},
	}}
	e := newTestEngine(t, store, &fakeSource{})

	slots, err := e.ListAvailableSlots(context.Background(), monday, time.Hour)
	require.NoError(t, err)

	// Starts 09:30, 10:00 and 10:30 all overlap the booking.
	require.Len(t, slots, 14)
	for _, s := range slots {
		assert.False(t, s.Overlaps(models.TimeSlot{Start: at(monday, 10, 0), End: at(monday, 11, 0)}),
			"slot %s overlaps the booked interval", s.Start)
	}
	// 09:00-10:00 and 11:00-12:00 butt against the booking and stay offered.
	assert.Equal(t, at(monday, 9, 0), slots[0].Start)
	assert.Equal(t, at(monday, 11, 0), slots[1].Start)
}

func TestListAvailableSlots_ExcludesCalendarBusy(t *testing.T) {
	cal := &fakeSource{busy: []models.BusyInterval{
		{Start: at(monday, 14, 0), End: at(monday, 15, 30)},
	}}
	e := newTestEngine(t, &fakeSource{}, cal)

	slots, err := e.ListAvailableSlots(context.Background(), monday, time.Hour)
	require.NoError(t, err)

	for _, s := range slots {
		assert.False(t, s.Start.Equal(at(monday, 14, 0)))
		assert.False(t, s.Start.Equal(at(monday, 14, 30)))
		assert.False(t, s.Start.Equal(at(monday, 15, 0)))
	}
}

func TestListAvailableSlots_NonBusinessDay(t *testing.T) {
	e := newTestEngine(t, &fakeSource{}, &fakeSource{})

	sunday := time.Date(2026, 9, 6, 0, 0, 0, 0, time.UTC)
	slots, err := e.ListAvailableSlots(context.Background(), sunday, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestListAvailableSlots_ExcludesPastSlots(t *testing.T) {
	e := newTestEngine(t, &fakeSource{}, &fakeSource{})
	e.now = func() time.Time { return at(monday, 12, 15) }

	slots, err := e.ListAvailableSlots(context.Background(), monday, time.Hour)
	require.NoError(t, err)

	require.NotEmpty(t, slots)
	assert.Equal(t, at(monday, 12, 30), slots[0].Start)
}

func TestListAvailableSlots_InvalidDuration(t *testing.T) {
	e := newTestEngine(t, &fakeSource{}, &fakeSource{})

	_, err := e.ListAvailableSlots(context.Background(), monday, 45*time.Minute)
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestListAvailableSlots_DefaultDuration(t *testing.T) {
	e := newTestEngine(t, &fakeSource{}, &fakeSource{})

	slots, err := e.ListAvailableSlots(context.Background(), monday, 0)
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	assert.Equal(t, time.Hour, slots[0].Duration())
}

func TestListAvailableSlots_ShorterDuration(t *testing.T) {
	e := newTestEngine(t, &fakeSource{}, &fakeSource{})

	slots, err := e.ListAvailableSlots(context.Background(), monday, 30*time.Minute)
	require.NoError(t, err)
	// Starts 09:00 through 17:30.
	assert.Len(t, slots, 18)
}

func TestListAvailableSlots_SourceErrors(t *testing.T) {
	t.Run("store error fails the read", func(t *testing.T) {
		e := newTestEngine(t, &fakeSource{err: errors.New("db gone")}, &fakeSource{})
		_, err := e.ListAvailableSlots(context.Background(), monday, time.Hour)
		assert.Error(t, err)
	})

	t.Run("calendar error fails the read", func(t *testing.T) {
		e := newTestEngine(t, &fakeSource{}, &fakeSource{err: errors.New("api down")})
		_, err := e.ListAvailableSlots(context.Background(), monday, time.Hour)
		assert.Error(t, err)
	})
}

func TestListAvailableSlots_Deterministic(t *testing.T) {
	store := &fakeSource{busy: []models.BusyInterval{
		{Start: at(monday, 9, 0), End: at(monday, 12, 0)},
	}}
	e := newTestEngine(t, store, &fakeSource{})

	first, err := e.ListAvailableSlots(context.Background(), monday, time.Hour)
	require.NoError(t, err)
	second, err := e.ListAvailableSlots(context.Background(), monday, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestListAvailableDates_SkipsWeekendAndFullDays(t *testing.T) {
	friday := time.Date(2026, 9, 11, 0, 0, 0, 0, time.UTC)
	e := newTestEngine(t, &fakeSource{}, &fakeSource{})
	// Friday evening after close: Friday has no future slots left.
	e.now = func() time.Time { return at(friday, 19, 0) }

	dates, err := e.ListAvailableDates(context.Background(), 7)
	require.NoError(t, err)

	require.NotEmpty(t, dates)
	nextMonday := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, nextMonday, dates[0])
	for _, d := range dates {
		assert.NotEqual(t, time.Saturday, d.Weekday())
		assert.NotEqual(t, time.Sunday, d.Weekday())
	}
}

func TestListAvailableDates_HorizonBound(t *testing.T) {
	e := newTestEngine(t, &fakeSource{}, &fakeSource{})

	// A one-day horizon covers today only, not tomorrow.
	dates, err := e.ListAvailableDates(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, dates, 1)
	assert.Equal(t, time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC), dates[0])
}

func TestListAvailableDates_MaxDates(t *testing.T) {
	rules := testRules(t)
	rules.MaxDates = 3
	e := NewEngine(rules, &fakeSource{}, &fakeSource{})
	e.now = func() time.Time { return fixedNow }

	dates, err := e.ListAvailableDates(context.Background(), 14)
	require.NoError(t, err)
	assert.Len(t, dates, 3)
}
