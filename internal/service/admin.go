package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"visado/internal/domain"
	"visado/internal/models"

	"github.com/rs/zerolog"
)

// ErrBadTransition rejects booking status changes outside the allowed
// lifecycle.
var ErrBadTransition = errors.New("status transition not allowed")

// SlotRequest is the admin slot creation form.
type SlotRequest struct {
	Date            string  `json:"date" validate:"required,datetime=2006-01-02"`
	TimeSlot        string  `json:"time" validate:"required,datetime=15:04"`
	MaxBookings     int64   `json:"maxBookings" validate:"omitempty,min=1,max=50"`
	DurationMinutes int64   `json:"durationMinutes" validate:"omitempty,min=5,max=240"`
	Price           float64 `json:"price" validate:"omitempty,min=0"`
}

// AdminService backs the authenticated management surface.
type AdminService struct {
	store  domain.Store
	logger *zerolog.Logger
}

func NewAdminService(store domain.Store, logger *zerolog.Logger) *AdminService {
	return &AdminService{store: store, logger: logger}
}

func (s *AdminService) GetConfig(ctx context.Context) (*models.AdminConfig, error) {
	return s.store.GetAdminConfig(ctx)
}

// UpdateConfig persists the classifier prompt and question budget.
func (s *AdminService) UpdateConfig(ctx context.Context, aiContext string, maxQuestions int) (*models.AdminConfig, error) {
	if maxQuestions < 1 || maxQuestions > 10 {
		return nil, fmt.Errorf("maxQuestions must be between 1 and 10, got %d", maxQuestions)
	}
	if aiContext == "" {
		aiContext = models.DefaultAIContext
	}

	cfg := &models.AdminConfig{
		AIContext:    aiContext,
		MaxQuestions: maxQuestions,
		UpdatedAt:    time.Now(),
	}
	if err := s.store.SaveAdminConfig(ctx, cfg); err != nil {
		return nil, err
	}

	s.logger.Info().Int("max_questions", maxQuestions).Msg("Admin config updated")
	return cfg, nil
}

func (s *AdminService) ListBookings(ctx context.Context, status, date string) ([]*models.Booking, error) {
	if status != "" && status != models.StatusPending && status != models.StatusConfirmed && status != models.StatusCancelled {
		return nil, fmt.Errorf("unknown status filter %q", status)
	}
	if date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return nil, fmt.Errorf("invalid date filter %q: %w", date, err)
		}
	}
	return s.store.ListBookings(ctx, status, date)
}

// UpdateBookingStatus applies an admin status change. Pending bookings
// may be confirmed or cancelled; confirmed ones only cancelled.
// Cancelling releases the seat.
func (s *AdminService) UpdateBookingStatus(ctx context.Context, id, status string) (*models.Booking, error) {
	booking, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case status == models.StatusCancelled && booking.Active():
		cancelled, err := s.store.CancelBooking(ctx, id)
		if err != nil {
			return nil, err
		}
		s.logger.Info().Str("booking_id", id).Msg("Booking cancelled by admin")
		return cancelled, nil

	case status == models.StatusConfirmed && booking.Status == models.StatusPending:
		if err := s.store.UpdateBookingStatus(ctx, id, models.StatusConfirmed); err != nil {
			return nil, err
		}
		booking.Status = models.StatusConfirmed
		s.logger.Info().Str("booking_id", id).Msg("Booking confirmed by admin")
		return booking, nil

	default:
		return nil, fmt.Errorf("%w: %s -> %s", ErrBadTransition, booking.Status, status)
	}
}

// CreateSlot adds one bookable slot.
func (s *AdminService) CreateSlot(ctx context.Context, req SlotRequest) (*models.Slot, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid slot request: %w", err)
	}

	slot := &models.Slot{
		Date:            req.Date,
		TimeSlot:        req.TimeSlot,
		MaxBookings:     req.MaxBookings,
		DurationMinutes: req.DurationMinutes,
		Price:           req.Price,
	}
	if err := s.store.CreateSlot(ctx, slot); err != nil {
		return nil, err
	}

	s.logger.Info().Str("slot_id", slot.ID).Str("date", slot.Date).Str("time", slot.TimeSlot).Msg("Slot created")
	return slot, nil
}

func (s *AdminService) DeleteSlot(ctx context.Context, id string) error {
	if err := s.store.DeleteSlot(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("slot_id", id).Msg("Slot deleted")
	return nil
}

func (s *AdminService) ListSlots(ctx context.Context, from, to string) ([]*models.Slot, error) {
	for _, d := range []string{from, to} {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", d, err)
		}
	}
	return s.store.ListSlotsInRange(ctx, from, to)
}

// Dashboard assembles the admin overview.
func (s *AdminService) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	counts, err := s.store.CountBookingsByStatus(ctx)
	if err != nil {
		return nil, err
	}

	revenue, err := s.store.ConfirmedRevenue(ctx)
	if err != nil {
		return nil, err
	}

	today := time.Now().Format("2006-01-02")
	available, booked, err := s.store.CountSlotsByAvailability(ctx, today)
	if err != nil {
		return nil, err
	}

	recent, err := s.store.RecentBookings(ctx, 10)
	if err != nil {
		return nil, err
	}

	return &models.DashboardStats{
		TotalBookings:     counts[models.StatusPending] + counts[models.StatusConfirmed] + counts[models.StatusCancelled],
		PendingBookings:   counts[models.StatusPending],
		ConfirmedBookings: counts[models.StatusConfirmed],
		CancelledBookings: counts[models.StatusCancelled],
		TotalRevenue:      revenue,
		AvailableSlots:    available,
		BookedSlots:       booked,
		RecentBookings:    recent,
	}, nil
}

// ConnectCalendar stores granted OAuth tokens for the owner calendar.
func (s *AdminService) ConnectCalendar(ctx context.Context, creds *models.CalendarCredentials) error {
	if creds.AccessToken == "" || creds.RefreshToken == "" {
		return errors.New("access and refresh tokens are required")
	}
	creds.UpdatedAt = time.Now()
	if err := s.store.SaveCalendarCredentials(ctx, creds); err != nil {
		return err
	}
	s.logger.Info().Str("account", creds.AccountEmail).Msg("Calendar connected")
	return nil
}

func (s *AdminService) DisconnectCalendar(ctx context.Context) error {
	if err := s.store.DeleteCalendarCredentials(ctx); err != nil {
		return err
	}
	s.logger.Info().Msg("Calendar disconnected")
	return nil
}

func (s *AdminService) CalendarStatus(ctx context.Context) (*models.CalendarCredentials, error) {
	return s.store.GetCalendarCredentials(ctx)
}
