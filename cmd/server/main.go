package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"frontdesk/internal/api"
	"frontdesk/internal/availability"
	"frontdesk/internal/cache"
	"frontdesk/internal/calendar"
	"frontdesk/internal/config"
	"frontdesk/internal/database"
	"frontdesk/internal/events"
	"frontdesk/internal/metrics"
	"frontdesk/internal/reservation"
	"frontdesk/internal/service"
	"frontdesk/internal/syncer"
)

func main() {
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("FRONTDESK_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var gateway reservation.CalendarGateway = calendar.Disabled{}
	if cfg.Calendar.Enabled {
		gw, err := calendar.NewGateway(ctx, calendar.Options{
			CalendarID:      cfg.Calendar.CalendarID,
			CredentialsFile: cfg.Calendar.CredentialsFile,
			Timezone:        cfg.Scheduling.Timezone,
			EventLocation:   cfg.Calendar.Location,
		}, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("calendar gateway error")
		}
		gateway = gw
	} else {
		logger.Warn().Msg("calendar integration disabled; bookings will not be mirrored")
	}

	var rdb *redis.Client
	var avCache *cache.Availability
	if cfg.Redis.Address != "" && cfg.Redis.CacheTTLSeconds > 0 {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		avCache = cache.NewAvailability(rdb, time.Duration(cfg.Redis.CacheTTLSeconds)*time.Second, &logger)
	}

	bus := events.NewBus()
	for _, eventType := range []string{"booking.confirmed", "booking.cancelled", "calendar.sync_failed"} {
		bus.Subscribe(eventType, func(e events.Event) error {
			logger.Debug().Str("event", e.Type).RawJSON("payload", e.Payload).Msg("domain event")
			return nil
		})
	}

	engine := availability.NewEngine(cfg.Scheduling, db, gateway)
	coordinator := reservation.NewCoordinator(cfg.Scheduling, db, gateway, bus, avCache, &logger)
	scheduler := service.NewScheduler(cfg.Scheduling, engine, coordinator, db, avCache, &logger)

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	backup := database.NewBackupService(db, database.BackupConfig{
		Enabled:       cfg.Backup.Enabled,
		StoragePath:   cfg.Backup.StoragePath,
		IntervalHours: cfg.Backup.IntervalHours,
		RetentionDays: cfg.Backup.RetentionDays,
	}, &logger)
	go backup.Start(ctx)

	if cfg.Calendar.Enabled {
		worker := syncer.New(db, gateway, syncer.Config{
			Interval:      time.Duration(cfg.Sync.IntervalSeconds) * time.Second,
			RatePerSecond: cfg.Sync.RatePerSecond,
			Burst:         cfg.Sync.Burst,
			MaxAttempts:   cfg.Sync.MaxAttempts,
		}, &logger)
		go worker.Run(ctx)
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	server := api.NewHTTPServer(cfg.Server.Port, cfg.Scheduling, scheduler, &logger)

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctxShutdown)
	}()

	logger.Info().Msg("frontdesk scheduling service started")
	if err := server.Start(); err != nil {
		logger.Fatal().Err(err).Msg("agent API server error")
	}
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
