package calendar

import (
	"context"
	"fmt"
	"time"

	"visado/internal/config"
	"visado/internal/database"
	"visado/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

type credentialsStore interface {
	GetCalendarCredentials(ctx context.Context) (*models.CalendarCredentials, error)
}

// Service creates consultation events in the owner's Google Calendar.
// Credentials are loaded per call so an admin reconnecting the account
// takes effect without a restart.
type Service struct {
	enabled bool
	store   credentialsStore
	oauth   *oauth2.Config
	loc     *time.Location
	logger  *zerolog.Logger

	// opts overrides client construction in tests.
	opts []option.ClientOption
}

func NewService(cfg config.CalendarConfig, store credentialsStore, logger *zerolog.Logger) (*Service, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid calendar timezone %q: %w", cfg.Timezone, err)
	}

	return &Service{
		enabled: cfg.Enabled,
		store:   store,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{calendar.CalendarEventsScope},
		},
		loc:    loc,
		logger: logger,
	}, nil
}

func (s *Service) client(ctx context.Context, creds *models.CalendarCredentials) (*calendar.Service, error) {
	if s.opts != nil {
		return calendar.NewService(ctx, s.opts...)
	}

	// Expiry is not persisted, so force a refresh on every call. The
	// oauth2 transport caches nothing between calls anyway.
	token := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	}
	return calendar.NewService(ctx, option.WithTokenSource(s.oauth.TokenSource(ctx, token)))
}

// CreateEvent books the consultation in the connected calendar and
// returns the Meet link when Google issued one.
func (s *Service) CreateEvent(ctx context.Context, booking *models.Booking, slot *models.Slot) (string, error) {
	if !s.enabled {
		return "", database.ErrCalendarNotConnected
	}

	creds, err := s.store.GetCalendarCredentials(ctx)
	if err != nil {
		return "", err
	}

	srv, err := s.client(ctx, creds)
	if err != nil {
		return "", fmt.Errorf("failed to create calendar client: %w", err)
	}

	start, err := slot.StartTime(s.loc)
	if err != nil {
		return "", fmt.Errorf("invalid slot time: %w", err)
	}
	end := start.Add(time.Duration(slot.DurationMinutes) * time.Minute)

	event := &calendar.Event{
		Summary: fmt.Sprintf("Consulta de Visa (%s) - %s", booking.VisaType, booking.CustomerName),
		Description: fmt.Sprintf("Tipo de visa: %s\nCliente: %s\nEmail: %s\nTeléfono: %s\nInvitados: %s\nComentario: %s",
			booking.VisaType, booking.CustomerName, booking.CustomerEmail, booking.CustomerPhone, booking.Invitados, booking.Comment),
		Start: &calendar.EventDateTime{
			DateTime: start.Format(time.RFC3339),
			TimeZone: s.loc.String(),
		},
		End: &calendar.EventDateTime{
			DateTime: end.Format(time.RFC3339),
			TimeZone: s.loc.String(),
		},
		Attendees: []*calendar.EventAttendee{
			{Email: booking.CustomerEmail},
		},
		ConferenceData: &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId: uuid.New().String(),
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{
					Type: "hangoutsMeet",
				},
			},
		},
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 15},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}

	calendarID := creds.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}

	created, err := srv.Events.Insert(calendarID, event).
		ConferenceDataVersion(1).
		SendUpdates("all").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to insert calendar event: %w", err)
	}

	s.logger.Info().
		Str("booking_id", booking.ID).
		Str("event_id", created.Id).
		Str("meet_link", created.HangoutLink).
		Msg("Calendar event created")

	return created.HangoutLink, nil
}
