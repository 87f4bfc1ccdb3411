package cache

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frontdesk/internal/models"
)

func newTestCache(t *testing.T) (*Availability, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := zerolog.New(io.Discard)
	return NewAvailability(rdb, 30*time.Second, &logger), mr
}

func sampleSlots() []models.TimeSlot {
	start := time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)
	return []models.TimeSlot{
		{Start: start, End: start.Add(time.Hour)},
		{Start: start.Add(30 * time.Minute), End: start.Add(90 * time.Minute)},
	}
}

func TestCache_SetGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	key := SlotsKey("2026-09-07", 60)
	c.Set(ctx, key, sampleSlots())

	var got []models.TimeSlot
	require.True(t, c.Get(ctx, key, &got))
	require.Len(t, got, 2)
	assert.True(t, got[0].Start.Equal(sampleSlots()[0].Start))
}

func TestCache_Miss(t *testing.T) {
	c, _ := newTestCache(t)

	var got []models.TimeSlot
	assert.False(t, c.Get(context.Background(), SlotsKey("2026-09-08", 60), &got))
}

func TestCache_TTLExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	key := SlotsKey("2026-09-07", 60)
	c.Set(ctx, key, sampleSlots())

	mr.FastForward(time.Minute)

	var got []models.TimeSlot
	assert.False(t, c.Get(ctx, key, &got))
}

func TestCache_InvalidateDate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	date := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)
	otherKey := SlotsKey("2026-09-08", 60)

	c.Set(ctx, SlotsKey("2026-09-07", 60), sampleSlots())
	c.Set(ctx, SlotsKey("2026-09-07", 30), sampleSlots())
	c.Set(ctx, DatesKey(14), []time.Time{date})
	c.Set(ctx, otherKey, sampleSlots())

	c.InvalidateDate(ctx, date)

	var slots []models.TimeSlot
	assert.False(t, c.Get(ctx, SlotsKey("2026-09-07", 60), &slots))
	assert.False(t, c.Get(ctx, SlotsKey("2026-09-07", 30), &slots))

	var dates []time.Time
	assert.False(t, c.Get(ctx, DatesKey(14), &dates), "date listings must be dropped on any write")

	assert.True(t, c.Get(ctx, otherKey, &slots), "other dates stay cached")
}

func TestCache_InvalidateDate_KeysByLocalDate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	c.Set(ctx, SlotsKey("2026-09-07", 60), sampleSlots())

	// A 17:00 Los Angeles booking is already the next day in UTC; keyed in
	// its local time it still drops the Sep 7 listing.
	start := time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC)
	c.InvalidateDate(ctx, start.In(la))

	var slots []models.TimeSlot
	assert.False(t, c.Get(ctx, SlotsKey("2026-09-07", 60), &slots))
}

func TestCache_NilIsNoop(t *testing.T) {
	var c *Availability
	ctx := context.Background()

	c.Set(ctx, "k", "v")
	var out string
	assert.False(t, c.Get(ctx, "k", &out))
	c.InvalidateDate(ctx, time.Now())
}
