package service

import (
	"context"
	"testing"

	"visado/internal/database"
	"visado/internal/events"
	"visado/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReconciler(t *testing.T, db *database.DB) (*ReconcilerService, *fakeBus, *fakeNotify) {
	t.Helper()
	bus := &fakeBus{}
	notify := &fakeNotify{}
	logger := zerolog.Nop()
	return NewReconcilerService(db, bus, notify, &logger), bus, notify
}

func reservePending(t *testing.T, db *database.DB, slotID string) *models.Booking {
	t.Helper()
	booking := &models.Booking{
		SlotID:        slotID,
		CustomerName:  "Ana",
		CustomerEmail: "ana@example.com",
		VisaType:      models.VisaEstudio,
		Price:         25,
	}
	_, err := db.ReserveSlot(context.Background(), booking)
	require.NoError(t, err)
	return booking
}

func TestProcessConfirmsPendingBooking(t *testing.T) {
	db := newTestStore(t)
	svc, bus, notify := newReconciler(t, db)
	ctx := context.Background()

	slot := mustCreateSlot(t, db, "2026-09-10", "10:30")
	booking := reservePending(t, db, slot.ID)

	outcome, err := svc.Process(ctx, paymentEvent(booking.ID, "cs_1", nil))
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)
	assert.Equal(t, "cs_1", got.PaymentID)
	assert.Equal(t, 25.0, got.Price)

	// Seat was counted at reserve time; confirming must not double it.
	gotSlot, err := db.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gotSlot.CurrentBookings)

	assert.Equal(t, []string{booking.ID}, notify.enqueued)
	require.Len(t, bus.published, 1)
	assert.Equal(t, events.EventBookingConfirmed, bus.published[0].Type)
}

func TestProcessRedeliveryIsDuplicate(t *testing.T) {
	db := newTestStore(t)
	svc, _, notify := newReconciler(t, db)
	ctx := context.Background()

	slot := mustCreateSlot(t, db, "2026-09-10", "10:30")
	booking := reservePending(t, db, slot.ID)

	event := paymentEvent(booking.ID, "cs_1", nil)
	outcome, err := svc.Process(ctx, event)
	require.NoError(t, err)
	require.Equal(t, OutcomeConfirmed, outcome)

	outcome, err = svc.Process(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Len(t, notify.enqueued, 1, "redelivery must not enqueue again")
}

func TestProcessSkipsOtherEvents(t *testing.T) {
	db := newTestStore(t)
	svc, _, notify := newReconciler(t, db)

	outcome, err := svc.Process(context.Background(), &models.PaymentEvent{Type: "payment_intent.created"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Empty(t, notify.enqueued)
}

func TestProcessRecoversByEmail(t *testing.T) {
	db := newTestStore(t)
	svc, _, notify := newReconciler(t, db)
	ctx := context.Background()

	slot := mustCreateSlot(t, db, "2026-09-10", "10:30")
	booking := reservePending(t, db, slot.ID)

	// Metadata points at a booking id that no longer exists, but the
	// same slot and email have a pending booking.
	outcome, err := svc.Process(ctx, paymentEvent("gone", "cs_2", nil))
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)
	assert.Equal(t, "cs_2", got.PaymentID)
	assert.Equal(t, []string{booking.ID}, notify.enqueued)
}

func TestProcessFallbackCreate(t *testing.T) {
	db := newTestStore(t)
	svc, _, notify := newReconciler(t, db)
	ctx := context.Background()

	slot := mustCreateSlot(t, db, "2026-09-10", "10:30")

	outcome, err := svc.Process(ctx, paymentEvent("", "cs_3", nil))
	require.NoError(t, err)
	assert.Equal(t, OutcomeFallbackCreated, outcome)

	created, err := db.GetBookingByPaymentID(ctx, "cs_3")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, created.Status)
	assert.Equal(t, "ana@example.com", created.CustomerEmail)
	assert.Equal(t, models.VisaEstudio, created.VisaType)
	assert.Equal(t, 25.0, created.Price)

	gotSlot, err := db.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gotSlot.CurrentBookings)
	assert.Equal(t, []string{created.ID}, notify.enqueued)
}

func TestProcessFallbackOverbooks(t *testing.T) {
	db := newTestStore(t)
	svc, _, _ := newReconciler(t, db)
	ctx := context.Background()

	slot := mustCreateSlot(t, db, "2026-09-10", "10:30")
	first := reservePending(t, db, slot.ID)
	require.NoError(t, db.ConfirmBooking(ctx, first.ID, "cs_other", 25))

	// Payment for a different customer on the now-full slot still has
	// to be recorded.
	outcome, err := svc.Process(ctx, paymentEvent("", "cs_4", map[string]string{
		"email": "otra@example.com",
	}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeFallbackCreated, outcome)

	created, err := db.GetBookingByPaymentID(ctx, "cs_4")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, created.Status)
}

func TestProcessCancelledBookingRecreated(t *testing.T) {
	db := newTestStore(t)
	svc, _, _ := newReconciler(t, db)
	ctx := context.Background()

	slot := mustCreateSlot(t, db, "2026-09-10", "10:30")
	booking := reservePending(t, db, slot.ID)
	_, err := db.CancelBooking(ctx, booking.ID)
	require.NoError(t, err)

	outcome, err := svc.Process(ctx, paymentEvent(booking.ID, "cs_5", nil))
	require.NoError(t, err)
	assert.Equal(t, OutcomeFallbackCreated, outcome)

	created, err := db.GetBookingByPaymentID(ctx, "cs_5")
	require.NoError(t, err)
	assert.NotEqual(t, booking.ID, created.ID)
	assert.Equal(t, models.StatusConfirmed, created.Status)
}

func TestProcessAbortsWithoutMetadata(t *testing.T) {
	db := newTestStore(t)
	svc, _, notify := newReconciler(t, db)

	// Unprocessable forever: the abort is terminal and must not bubble
	// an error, or the gateway would redeliver the event indefinitely.
	event := &models.PaymentEvent{
		Type:      "checkout.session.completed",
		PaymentID: "cs_6",
		Metadata:  map[string]string{},
	}
	outcome, err := svc.Process(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAborted, outcome)
	assert.Empty(t, notify.enqueued)
}

func TestProcessAbortsOnUnknownSlot(t *testing.T) {
	db := newTestStore(t)
	svc, _, notify := newReconciler(t, db)

	outcome, err := svc.Process(context.Background(), paymentEvent("", "cs_7", map[string]string{
		"selected_date": "2030-01-01",
	}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAborted, outcome)
	assert.Empty(t, notify.enqueued)
}
