package syncer

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frontdesk/internal/database"
	"frontdesk/internal/models"
)

type stubStore struct {
	tasks    []database.SyncTask
	bookings map[int64]*models.Booking

	eventIDs map[int64]string
	done     []int64
	retried  []int64
	retryAt  time.Time
	attempts int
}

func newStubStore() *stubStore {
	return &stubStore{
		bookings: make(map[int64]*models.Booking),
		eventIDs: make(map[int64]string),
	}
}

func (s *stubStore) DueSyncTasks(_ context.Context, _ int) ([]database.SyncTask, error) {
	return s.tasks, nil
}

func (s *stubStore) GetBooking(_ context.Context, id int64) (*models.Booking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return b, nil
}

func (s *stubStore) SetCalendarEventID(_ context.Context, id int64, eventID string) error {
	s.eventIDs[id] = eventID
	return nil
}

func (s *stubStore) MarkSyncDone(_ context.Context, id int64) error {
	s.done = append(s.done, id)
	return nil
}

func (s *stubStore) MarkSyncRetry(_ context.Context, id int64, attempts int, _ string, nextRetry time.Time, _ int) error {
	s.retried = append(s.retried, id)
	s.attempts = attempts
	s.retryAt = nextRetry
	return nil
}

type stubCalendar struct {
	eventID string
	err     error
	created int
}

func (c *stubCalendar) CreateEvent(_ context.Context, _ *models.Booking) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.created++
	return c.eventID, nil
}

func newTestSyncer(store *stubStore, cal *stubCalendar) *Syncer {
	logger := zerolog.New(io.Discard)
	return New(store, cal, Config{MaxAttempts: 5}, &logger)
}

func confirmedBooking(id int64) *models.Booking {
	return &models.Booking{
		ID:        id,
		Reference: "ref",
		Status:    models.StatusConfirmed,
		Slot: models.TimeSlot{
			Start: time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 9, 7, 11, 0, 0, 0, time.UTC),
		},
	}
}

func TestDrain_RepairsMissingEvent(t *testing.T) {
	store := newStubStore()
	store.bookings[1] = confirmedBooking(1)
	store.tasks = []database.SyncTask{{ID: 100, BookingID: 1}}
	cal := &stubCalendar{eventID: "evt-9"}

	newTestSyncer(store, cal).drain(context.Background())

	assert.Equal(t, 1, cal.created)
	assert.Equal(t, "evt-9", store.eventIDs[1])
	assert.Equal(t, []int64{100}, store.done)
	assert.Empty(t, store.retried)
}

func TestDrain_ReschedulesOnFailure(t *testing.T) {
	store := newStubStore()
	store.bookings[1] = confirmedBooking(1)
	store.tasks = []database.SyncTask{{ID: 100, BookingID: 1, Attempts: 2}}
	cal := &stubCalendar{err: errors.New("api 500")}

	before := time.Now()
	newTestSyncer(store, cal).drain(context.Background())

	require.Equal(t, []int64{100}, store.retried)
	assert.Equal(t, 3, store.attempts)
	assert.True(t, store.retryAt.After(before))
	assert.Empty(t, store.done)
}

func TestDrain_SkipsSettledBookings(t *testing.T) {
	t.Run("booking deleted", func(t *testing.T) {
		store := newStubStore()
		store.tasks = []database.SyncTask{{ID: 100, BookingID: 1}}
		cal := &stubCalendar{eventID: "evt-9"}

		newTestSyncer(store, cal).drain(context.Background())

		assert.Zero(t, cal.created)
		assert.Equal(t, []int64{100}, store.done)
	})

	t.Run("booking cancelled", func(t *testing.T) {
		store := newStubStore()
		b := confirmedBooking(1)
		b.Status = models.StatusCancelled
		store.bookings[1] = b
		store.tasks = []database.SyncTask{{ID: 100, BookingID: 1}}
		cal := &stubCalendar{eventID: "evt-9"}

		newTestSyncer(store, cal).drain(context.Background())

		assert.Zero(t, cal.created)
		assert.Equal(t, []int64{100}, store.done)
	})

	t.Run("event already recorded", func(t *testing.T) {
		store := newStubStore()
		b := confirmedBooking(1)
		b.CalendarEventID = "evt-1"
		store.bookings[1] = b
		store.tasks = []database.SyncTask{{ID: 100, BookingID: 1}}
		cal := &stubCalendar{eventID: "evt-9"}

		newTestSyncer(store, cal).drain(context.Background())

		assert.Zero(t, cal.created)
		assert.Equal(t, []int64{100}, store.done)
	})
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 30*time.Second, backoff(1))
	assert.Equal(t, time.Minute, backoff(2))
	assert.Equal(t, 2*time.Minute, backoff(3))
	assert.Equal(t, time.Hour, backoff(20))
}
