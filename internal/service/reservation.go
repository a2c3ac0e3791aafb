package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"visado/internal/database"
	"visado/internal/domain"
	"visado/internal/events"
	"visado/internal/metrics"
	"visado/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

var validate = validator.New()

// ErrUnknownVisaType rejects reservations outside the fixed catalog.
var ErrUnknownVisaType = errors.New("unknown visa type")

// ReserveRequest is the public booking form.
type ReserveRequest struct {
	VisaType  string `json:"visaType" validate:"required"`
	Name      string `json:"name" validate:"required,min=2,max=200"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required,max=40"`
	Invitados string `json:"invitados" validate:"max=500"`
	Comment   string `json:"comment" validate:"max=2000"`
	Date      string `json:"selectedDate" validate:"required,datetime=2006-01-02"`
	Time      string `json:"selectedTime" validate:"required,datetime=15:04"`
}

// ReservationService holds seats and opens checkout sessions.
type ReservationService struct {
	store    domain.Store
	eventBus domain.EventPublisher
	checkout domain.CheckoutClient
	logger   *zerolog.Logger
}

func NewReservationService(store domain.Store, eventBus domain.EventPublisher, checkout domain.CheckoutClient, logger *zerolog.Logger) *ReservationService {
	return &ReservationService{
		store:    store,
		eventBus: eventBus,
		checkout: checkout,
		logger:   logger,
	}
}

// Reserve takes a seat on the requested slot and records a pending
// booking in one transaction. The seat stays held until the payment
// webhook confirms it or an admin cancels.
func (s *ReservationService) Reserve(ctx context.Context, req ReserveRequest) (*models.Booking, *models.Slot, error) {
	if err := validate.Struct(req); err != nil {
		metrics.IncReservation("invalid")
		return nil, nil, fmt.Errorf("invalid reservation request: %w", err)
	}
	if !models.ValidVisaType(req.VisaType) {
		metrics.IncReservation("invalid")
		return nil, nil, ErrUnknownVisaType
	}

	slot, err := s.store.GetSlotByDateTime(ctx, req.Date, req.Time)
	if err != nil {
		metrics.IncReservation("slot_not_found")
		return nil, nil, err
	}

	booking := &models.Booking{
		SlotID:        slot.ID,
		CustomerName:  req.Name,
		CustomerEmail: req.Email,
		CustomerPhone: req.Phone,
		VisaType:      req.VisaType,
		Price:         slot.Price,
		Invitados:     req.Invitados,
		Comment:       req.Comment,
	}

	slot, err = s.store.ReserveSlot(ctx, booking)
	if err != nil {
		if errors.Is(err, database.ErrSlotFull) {
			metrics.IncReservation("conflict")
		} else {
			metrics.IncReservation("error")
		}
		return nil, nil, err
	}

	metrics.IncReservation("created")
	s.publishEvent(events.EventBookingCreated, booking, slot)

	s.logger.Info().
		Str("booking_id", booking.ID).
		Str("slot_id", slot.ID).
		Str("visa_type", booking.VisaType).
		Msg("Booking reserved")

	return booking, slot, nil
}

// Checkout opens a hosted payment page for a pending booking.
func (s *ReservationService) Checkout(ctx context.Context, bookingID string) (*models.CheckoutSession, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.StatusPending {
		return nil, database.ErrNotPending
	}

	slot, err := s.store.GetSlot(ctx, booking.SlotID)
	if err != nil {
		return nil, err
	}

	return s.checkout.CreateCheckoutSession(ctx, models.CheckoutRequest{
		BookingID:    booking.ID,
		VisaType:     booking.VisaType,
		PriceCents:   int64(math.Round(booking.Price * 100)),
		Name:         booking.CustomerName,
		Email:        booking.CustomerEmail,
		Phone:        booking.CustomerPhone,
		Invitados:    booking.Invitados,
		Comment:      booking.Comment,
		SelectedDate: slot.Date,
		SelectedTime: slot.TimeSlot,
	})
}

// Cancel releases the booking's seat and marks it cancelled.
func (s *ReservationService) Cancel(ctx context.Context, bookingID string) (*models.Booking, error) {
	booking, err := s.store.CancelBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	slot, err := s.store.GetSlot(ctx, booking.SlotID)
	if err != nil {
		slot = &models.Slot{ID: booking.SlotID}
	}
	s.publishEvent(events.EventBookingCancelled, booking, slot)

	s.logger.Info().Str("booking_id", booking.ID).Msg("Booking cancelled")
	return booking, nil
}

func (s *ReservationService) publishEvent(eventType string, booking *models.Booking, slot *models.Slot) {
	if s.eventBus == nil {
		return
	}
	err := s.eventBus.PublishJSON(eventType, events.BookingEventPayload{
		BookingID:     booking.ID,
		SlotID:        booking.SlotID,
		CustomerName:  booking.CustomerName,
		CustomerEmail: booking.CustomerEmail,
		VisaType:      booking.VisaType,
		Date:          slot.Date,
		TimeSlot:      slot.TimeSlot,
		Status:        booking.Status,
		Price:         booking.Price,
		PaymentID:     booking.PaymentID,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("Failed to publish booking event")
	}
}
