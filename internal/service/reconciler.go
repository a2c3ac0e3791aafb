package service

import (
	"context"
	"errors"
	"fmt"

	"visado/internal/database"
	"visado/internal/domain"
	"visado/internal/events"
	"visado/internal/metrics"
	"visado/internal/models"

	"github.com/rs/zerolog"
)

// Reconciliation outcomes, one per webhook delivery. Aborted is
// terminal: the event cannot ever be processed, so it is acknowledged
// and the gateway stops redelivering. Error is transient and keeps
// the delivery open for a retry.
const (
	OutcomeConfirmed       = "confirmed"
	OutcomeDuplicate       = "duplicate"
	OutcomeFallbackCreated = "fallback_created"
	OutcomeSkipped         = "skipped"
	OutcomeAborted         = "aborted"
	OutcomeError           = "error"
)

// ReconcilerService turns verified payment events into confirmed
// bookings. Deliveries are retried by the gateway, so every path has
// to be idempotent: a payment id lands on exactly one booking.
type ReconcilerService struct {
	store    domain.Store
	eventBus domain.EventPublisher
	notify   domain.NotifyEnqueuer
	logger   *zerolog.Logger
}

func NewReconcilerService(store domain.Store, eventBus domain.EventPublisher, notify domain.NotifyEnqueuer, logger *zerolog.Logger) *ReconcilerService {
	return &ReconcilerService{
		store:    store,
		eventBus: eventBus,
		notify:   notify,
		logger:   logger,
	}
}

// Process reconciles one verified payment event and reports which path
// it took. A non-nil error always means a transient storage failure;
// events that can never be reconciled come back as OutcomeAborted with
// a nil error so the caller acknowledges them.
func (s *ReconcilerService) Process(ctx context.Context, event *models.PaymentEvent) (outcome string, err error) {
	defer func() { metrics.IncWebhook(outcome) }()

	if !event.Completed() {
		s.logger.Debug().Str("type", event.Type).Msg("Ignoring non-payment event")
		return OutcomeSkipped, nil
	}

	// Redelivery check: this payment may already be attached.
	existing, err := s.store.GetBookingByPaymentID(ctx, event.PaymentID)
	if err == nil {
		s.logger.Info().
			Str("payment_id", event.PaymentID).
			Str("booking_id", existing.ID).
			Msg("Payment already reconciled, acknowledging redelivery")
		return OutcomeDuplicate, nil
	}
	if !errors.Is(err, database.ErrBookingNotFound) {
		return OutcomeError, fmt.Errorf("payment lookup: %w", err)
	}

	if bookingID := event.BookingID(); bookingID != "" {
		outcome, err := s.confirmByID(ctx, bookingID, event)
		if outcome != "" {
			return outcome, err
		}
	}

	return s.recoverWithoutBooking(ctx, event)
}

// confirmByID handles the normal path where the metadata names a
// pending booking. An empty outcome means the caller should fall
// through to metadata recovery.
func (s *ReconcilerService) confirmByID(ctx context.Context, bookingID string, event *models.PaymentEvent) (string, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if errors.Is(err, database.ErrBookingNotFound) {
		s.logger.Warn().Str("booking_id", bookingID).Msg("Paid booking missing locally, recovering from metadata")
		return "", nil
	}
	if err != nil {
		return OutcomeError, fmt.Errorf("booking lookup: %w", err)
	}

	switch booking.Status {
	case models.StatusPending:
		if err := s.store.ConfirmBooking(ctx, booking.ID, event.PaymentID, event.AmountEUR()); err != nil {
			if errors.Is(err, database.ErrNotPending) || errors.Is(err, database.ErrDuplicatePayment) {
				return OutcomeDuplicate, nil
			}
			return OutcomeError, fmt.Errorf("confirm booking: %w", err)
		}
		s.finishConfirmation(ctx, booking.ID, event)
		return OutcomeConfirmed, nil

	case models.StatusConfirmed:
		// Confirmed under a different payment id; a second capture for
		// the same seat is a new booking, not a redelivery.
		s.logger.Warn().
			Str("booking_id", booking.ID).
			Str("payment_id", event.PaymentID).
			Msg("Booking already confirmed with another payment, recovering from metadata")
		return "", nil

	default:
		// Cancelled in the meantime: the seat was released, so record
		// the captured payment as a fresh confirmed booking.
		s.logger.Warn().Str("booking_id", booking.ID).Msg("Paid booking was cancelled, recovering from metadata")
		return "", nil
	}
}

// recoverWithoutBooking rebuilds the booking from session metadata
// when the local record is gone. The customer paid, so the booking is
// created even if the slot ends up overbooked.
func (s *ReconcilerService) recoverWithoutBooking(ctx context.Context, event *models.PaymentEvent) (string, error) {
	date, timeSlot := event.SelectedDate(), event.SelectedTime()
	if event.Email() == "" || date == "" || timeSlot == "" {
		s.logger.Error().
			Str("payment_id", event.PaymentID).
			Msg("Payment has no usable metadata, acknowledging without reconciling")
		return OutcomeAborted, nil
	}

	slot, err := s.store.GetSlotByDateTime(ctx, date, timeSlot)
	if errors.Is(err, database.ErrSlotNotFound) {
		s.logger.Error().
			Str("payment_id", event.PaymentID).
			Str("date", date).
			Str("time", timeSlot).
			Msg("Paid slot does not exist, acknowledging without reconciling")
		return OutcomeAborted, nil
	}
	if err != nil {
		return OutcomeError, fmt.Errorf("slot %s %s: %w", date, timeSlot, err)
	}

	// A pending booking for the same seat and email may exist under a
	// different id (e.g. the customer reserved twice).
	if pending, err := s.store.FindPendingBooking(ctx, slot.ID, event.Email()); err == nil {
		if err := s.store.ConfirmBooking(ctx, pending.ID, event.PaymentID, event.AmountEUR()); err == nil {
			s.logger.Info().
				Str("booking_id", pending.ID).
				Str("payment_id", event.PaymentID).
				Msg("Payment matched to pending booking by slot and email")
			s.finishConfirmation(ctx, pending.ID, event)
			return OutcomeConfirmed, nil
		}
	}

	booking := &models.Booking{
		SlotID:        slot.ID,
		CustomerName:  event.Name(),
		CustomerEmail: event.Email(),
		CustomerPhone: event.Phone(),
		VisaType:      event.VisaType(),
		Price:         event.AmountEUR(),
		PaymentID:     event.PaymentID,
		Invitados:     event.Invitados(),
		Comment:       event.Comment(),
	}

	overbooked, err := s.store.CreateConfirmedBooking(ctx, booking)
	if err != nil {
		if errors.Is(err, database.ErrDuplicatePayment) {
			return OutcomeDuplicate, nil
		}
		return OutcomeError, fmt.Errorf("create confirmed booking: %w", err)
	}
	if overbooked {
		s.logger.Warn().
			Str("booking_id", booking.ID).
			Str("slot_id", slot.ID).
			Msg("Recovered booking overbooks the slot, payment was already captured")
	}

	s.finishConfirmation(ctx, booking.ID, event)
	return OutcomeFallbackCreated, nil
}

// finishConfirmation publishes the domain event and queues the
// notification side effects. Both are best effort; the payment is
// already reconciled.
func (s *ReconcilerService) finishConfirmation(ctx context.Context, bookingID string, event *models.PaymentEvent) {
	if s.eventBus != nil {
		err := s.eventBus.PublishJSON(events.EventBookingConfirmed, events.BookingEventPayload{
			BookingID:     bookingID,
			CustomerEmail: event.Email(),
			VisaType:      event.VisaType(),
			Date:          event.SelectedDate(),
			TimeSlot:      event.SelectedTime(),
			Status:        models.StatusConfirmed,
			Price:         event.AmountEUR(),
			PaymentID:     event.PaymentID,
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("booking_id", bookingID).Msg("Failed to publish confirmation event")
		}
	}

	if s.notify != nil {
		if err := s.notify.EnqueueConfirmation(ctx, bookingID); err != nil {
			metrics.IncNotificationFailure("enqueue")
			s.logger.Error().Err(err).Str("booking_id", bookingID).Msg("Failed to enqueue confirmation notifications")
		}
	}
}
