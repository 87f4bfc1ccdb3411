// Package api exposes the agent-facing HTTP endpoints.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"frontdesk/internal/config"
	"frontdesk/internal/service"
)

// HTTPServer serves the agent API.
type HTTPServer struct {
	rules     config.Scheduling
	scheduler *service.Scheduler
	log       *zerolog.Logger
	srv       *http.Server
}

// NewHTTPServer wires the routes and returns a server ready to start.
func NewHTTPServer(port int, rules config.Scheduling, scheduler *service.Scheduler, log *zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		rules:     rules,
		scheduler: scheduler,
		log:       log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/agent/check-availability", s.handleCheckAvailability)
	mux.HandleFunc("/api/agent/book-appointment", s.handleBookAppointment)
	mux.HandleFunc("/api/agent/available-dates", s.handleAvailableDates)
	mux.HandleFunc("/api/agent/upcoming", s.handleUpcoming)
	mux.HandleFunc("/api/agent/bookings/", s.handleCancelBooking)

	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start blocks serving requests until the listener fails or Shutdown is called.
func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("agent API listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
