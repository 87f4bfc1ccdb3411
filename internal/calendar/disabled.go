package calendar

import (
	"context"
	"time"

	"frontdesk/internal/models"
)

// Disabled is a no-op gateway for deployments without an external calendar.
// It reports no busy intervals and a trivially successful mirror write with an
// empty event ID, so the booking path behaves as if the mirror is always in
// sync.
type Disabled struct{}

func (Disabled) ListBusyIntervals(ctx context.Context, from, to time.Time) ([]models.BusyInterval, error) {
	return nil, nil
}

func (Disabled) CreateEvent(ctx context.Context, b *models.Booking) (string, error) {
	return "", nil
}

func (Disabled) DeleteEvent(ctx context.Context, eventID string) error {
	return nil
}
