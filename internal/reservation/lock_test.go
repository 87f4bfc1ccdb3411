package reservation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateLocks_Exclusive(t *testing.T) {
	locks := newDateLocks()
	ctx := context.Background()

	release, err := locks.acquire(ctx, "2026-09-07", time.Second)
	require.NoError(t, err)

	_, err = locks.acquire(ctx, "2026-09-07", 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)

	release()

	release2, err := locks.acquire(ctx, "2026-09-07", time.Second)
	require.NoError(t, err)
	release2()
}

func TestDateLocks_IndependentDates(t *testing.T) {
	locks := newDateLocks()
	ctx := context.Background()

	release1, err := locks.acquire(ctx, "2026-09-07", time.Second)
	require.NoError(t, err)
	defer release1()

	release2, err := locks.acquire(ctx, "2026-09-08", 50*time.Millisecond)
	require.NoError(t, err)
	release2()
}

func TestDateLocks_ContextCancelled(t *testing.T) {
	locks := newDateLocks()

	release, err := locks.acquire(context.Background(), "2026-09-07", time.Second)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = locks.acquire(ctx, "2026-09-07", time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
