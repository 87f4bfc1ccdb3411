// Package syncer repairs the calendar mirror for bookings whose event
// creation failed at confirmation time.
package syncer

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"frontdesk/internal/database"
	"frontdesk/internal/metrics"
	"frontdesk/internal/models"
)

const taskBatchSize = 20

// BookingStore is the queue and booking storage the syncer works against.
type BookingStore interface {
	DueSyncTasks(ctx context.Context, limit int) ([]database.SyncTask, error)
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	SetCalendarEventID(ctx context.Context, id int64, eventID string) error
	MarkSyncDone(ctx context.Context, id int64) error
	MarkSyncRetry(ctx context.Context, id int64, attempts int, lastErr string, nextRetry time.Time, maxAttempts int) error
}

// CalendarGateway creates mirror events.
type CalendarGateway interface {
	CreateEvent(ctx context.Context, b *models.Booking) (string, error)
}

// Config tunes the retry loop.
type Config struct {
	Interval      time.Duration
	RatePerSecond float64
	Burst         int
	MaxAttempts   int
}

// Syncer drains the calendar sync queue in the background.
type Syncer struct {
	store    BookingStore
	calendar CalendarGateway
	cfg      Config
	limiter  *rate.Limiter
	log      *zerolog.Logger
}

// New creates a syncer. It does nothing until Run is called.
func New(store BookingStore, calendar CalendarGateway, cfg Config, log *zerolog.Logger) *Syncer {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	return &Syncer{
		store:    store,
		calendar: calendar,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		log:      log,
	}
}

// Run polls the queue until the context is cancelled.
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.cfg.Interval).Msg("calendar syncer started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("calendar syncer stopped")
			return
		case <-ticker.C:
			s.drain(ctx)
		}
	}
}

func (s *Syncer) drain(ctx context.Context) {
	tasks, err := s.store.DueSyncTasks(ctx, taskBatchSize)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load sync tasks")
		return
	}

	for _, task := range tasks {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		s.process(ctx, task)
	}
}

func (s *Syncer) process(ctx context.Context, task database.SyncTask) {
	booking, err := s.store.GetBooking(ctx, task.BookingID)
	if err != nil {
		// Booking gone (e.g. discarded); the task has nothing to mirror.
		s.log.Warn().Err(err).Int64("booking_id", task.BookingID).Msg("sync task references missing booking")
		s.markDone(ctx, task.ID)
		return
	}

	if !booking.IsActive() || booking.CalendarEventID != "" {
		s.markDone(ctx, task.ID)
		return
	}

	eventID, err := s.calendar.CreateEvent(ctx, booking)
	if err != nil {
		metrics.IncCalendarSyncRetry()
		attempts := task.Attempts + 1
		retryAt := time.Now().Add(backoff(attempts))
		if mErr := s.store.MarkSyncRetry(ctx, task.ID, attempts, err.Error(), retryAt, s.cfg.MaxAttempts); mErr != nil {
			s.log.Error().Err(mErr).Int64("task_id", task.ID).Msg("failed to reschedule sync task")
		}
		s.log.Warn().Err(err).
			Int64("booking_id", booking.ID).
			Int("attempts", attempts).
			Time("next_retry", retryAt).
			Msg("calendar event creation failed, will retry")
		return
	}

	if err := s.store.SetCalendarEventID(ctx, booking.ID, eventID); err != nil {
		s.log.Error().Err(err).Int64("booking_id", booking.ID).Msg("failed to record calendar event id")
		return
	}
	s.markDone(ctx, task.ID)
	s.log.Info().
		Int64("booking_id", booking.ID).
		Str("event_id", eventID).
		Msg("calendar mirror repaired")
}

func (s *Syncer) markDone(ctx context.Context, taskID int64) {
	if err := s.store.MarkSyncDone(ctx, taskID); err != nil {
		s.log.Error().Err(err).Int64("task_id", taskID).Msg("failed to mark sync task done")
	}
}

// backoff doubles the delay per attempt, capped at an hour.
func backoff(attempts int) time.Duration {
	d := 30 * time.Second
	for i := 1; i < attempts && d < time.Hour; i++ {
		d *= 2
	}
	if d > time.Hour {
		d = time.Hour
	}
	return d
}
