// Package calendar mirrors bookings into a shared external calendar and reads
// busy intervals created outside this system.
package calendar

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"frontdesk/internal/models"
)

// Options configures the Google Calendar gateway.
type Options struct {
	CalendarID      string // defaults to "primary"
	CredentialsFile string // service account JSON
	Timezone        string // IANA name sent with event times
	EventLocation   string // free-form location text on created events
}

// Gateway talks to Google Calendar. The calendar is a weakly-consistent shared
// resource; it is never the sole conflict-prevention source.
type Gateway struct {
	svc        *gcal.Service
	calendarID string
	timezone   string
	location   string
	log        *zerolog.Logger
}

// NewGateway authenticates with a service account and builds the gateway.
func NewGateway(ctx context.Context, opts Options, log *zerolog.Logger) (*Gateway, error) {
	creds, err := os.ReadFile(opts.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read calendar credentials: %w", err)
	}

	conf, err := google.JWTConfigFromJSON(creds, gcal.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("parse calendar credentials: %w", err)
	}

	svc, err := gcal.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	calendarID := opts.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}

	log.Info().Str("calendar_id", calendarID).Msg("Google Calendar gateway ready")
	return &Gateway{
		svc:        svc,
		calendarID: calendarID,
		timezone:   opts.Timezone,
		location:   opts.EventLocation,
		log:        log,
	}, nil
}

// ListBusyIntervals returns busy periods on the calendar overlapping [from, to).
func (g *Gateway) ListBusyIntervals(ctx context.Context, from, to time.Time) ([]models.BusyInterval, error) {
	req := &gcal.FreeBusyRequest{
		TimeMin:  from.Format(time.RFC3339),
		TimeMax:  to.Format(time.RFC3339),
		TimeZone: g.timezone,
		Items:    []*gcal.FreeBusyRequestItem{{Id: g.calendarID}},
	}

	resp, err := g.svc.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("freebusy query: %w", err)
	}

	cal, ok := resp.Calendars[g.calendarID]
	if !ok {
		return nil, fmt.Errorf("calendar %q missing from freebusy response", g.calendarID)
	}

	var busy []models.BusyInterval
	for _, period := range cal.Busy {
		start, err := time.Parse(time.RFC3339, period.Start)
		if err != nil {
			return nil, fmt.Errorf("parse busy start %q: %w", period.Start, err)
		}
		end, err := time.Parse(time.RFC3339, period.End)
		if err != nil {
			return nil, fmt.Errorf("parse busy end %q: %w", period.End, err)
		}
		busy = append(busy, models.BusyInterval{Start: start, End: end})
	}
	return busy, nil
}

// CreateEvent mirrors a booking as a calendar event and returns the event ID.
func (g *Gateway) CreateEvent(ctx context.Context, b *models.Booking) (string, error) {
	event := &gcal.Event{
		Summary:     fmt.Sprintf("Appointment - %s", b.GuestName),
		Location:    g.location,
		Description: eventDescription(b),
		Start: &gcal.EventDateTime{
			DateTime: b.Slot.Start.Format(time.RFC3339),
			TimeZone: g.timezone,
		},
		End: &gcal.EventDateTime{
			DateTime: b.Slot.End.Format(time.RFC3339),
			TimeZone: g.timezone,
		},
		Reminders: &gcal.EventReminders{
			UseDefault: false,
			Overrides: []*gcal.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 60},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}

	sendUpdates := "none"
	if b.GuestEmail != "" {
		event.Attendees = []*gcal.EventAttendee{{Email: b.GuestEmail, DisplayName: b.GuestName}}
		sendUpdates = "all"
	}

	created, err := g.svc.Events.Insert(g.calendarID, event).
		SendUpdates(sendUpdates).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("insert calendar event: %w", err)
	}

	g.log.Info().Str("event_id", created.Id).Str("reference", b.Reference).Msg("calendar event created")
	return created.Id, nil
}

// DeleteEvent removes a mirrored event.
func (g *Gateway) DeleteEvent(ctx context.Context, eventID string) error {
	if err := g.svc.Events.Delete(g.calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	return nil
}

func eventDescription(b *models.Booking) string {
	var sb strings.Builder
	sb.WriteString("Appointment booked by phone\n\n")
	sb.WriteString("Guest: " + b.GuestName + "\n")
	sb.WriteString("Phone: " + b.GuestPhone + "\n")
	if b.GuestEmail != "" {
		sb.WriteString("Email: " + b.GuestEmail + "\n")
	}
	sb.WriteString("Reference: " + b.Reference + "\n")
	if b.Description != "" {
		sb.WriteString("\nNotes: " + b.Description)
	}
	return sb.String()
}
