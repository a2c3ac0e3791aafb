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

func validReserveRequest() ReserveRequest {
	return ReserveRequest{
		VisaType: models.VisaEstudio,
		Name:     "Ana García",
		Email:    "ana@example.com",
		Phone:    "+34600000000",
		Date:     "2026-09-10",
		Time:     "10:30",
	}
}

func newReservationService(t *testing.T) (*ReservationService, *database.DB, *fakeBus, *fakeCheckout) {
	t.Helper()
	db := newTestStore(t)
	bus := &fakeBus{}
	checkout := &fakeCheckout{session: &models.CheckoutSession{ID: "cs_1", URL: "https://pay.example/cs_1"}}
	logger := zerolog.Nop()
	return NewReservationService(db, bus, checkout, &logger), db, bus, checkout
}

func TestReserve(t *testing.T) {
	svc, db, bus, _ := newReservationService(t)
	ctx := context.Background()
	mustCreateSlot(t, db, "2026-09-10", "10:30")

	booking, slot, err := svc.Reserve(ctx, validReserveRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, booking.ID)
	assert.Equal(t, models.StatusPending, booking.Status)
	assert.Equal(t, models.DefaultSlotPriceEUR, booking.Price)
	assert.Equal(t, int64(1), slot.CurrentBookings)

	require.Len(t, bus.published, 1)
	assert.Equal(t, events.EventBookingCreated, bus.published[0].Type)
	payload := decodePayload(t, bus.published[0].Payload)
	assert.Equal(t, booking.ID, payload["booking_id"])
}

func TestReserveValidation(t *testing.T) {
	svc, db, _, _ := newReservationService(t)
	ctx := context.Background()
	mustCreateSlot(t, db, "2026-09-10", "10:30")

	t.Run("MissingEmail", func(t *testing.T) {
		req := validReserveRequest()
		req.Email = ""
		_, _, err := svc.Reserve(ctx, req)
		assert.Error(t, err)
	})

	t.Run("BadDate", func(t *testing.T) {
		req := validReserveRequest()
		req.Date = "10/09/2026"
		_, _, err := svc.Reserve(ctx, req)
		assert.Error(t, err)
	})

	t.Run("UnknownVisaType", func(t *testing.T) {
		req := validReserveRequest()
		req.VisaType = "turismo"
		_, _, err := svc.Reserve(ctx, req)
		assert.ErrorIs(t, err, ErrUnknownVisaType)
	})

	t.Run("NoSuchSlot", func(t *testing.T) {
		req := validReserveRequest()
		req.Time = "23:00"
		_, _, err := svc.Reserve(ctx, req)
		assert.ErrorIs(t, err, database.ErrSlotNotFound)
	})
}

func TestReserveFullSlot(t *testing.T) {
	svc, db, bus, _ := newReservationService(t)
	ctx := context.Background()
	mustCreateSlot(t, db, "2026-09-10", "10:30")

	_, _, err := svc.Reserve(ctx, validReserveRequest())
	require.NoError(t, err)

	req := validReserveRequest()
	req.Email = "otro@example.com"
	_, _, err = svc.Reserve(ctx, req)
	assert.ErrorIs(t, err, database.ErrSlotFull)
	assert.Len(t, bus.published, 1, "conflict must not publish an event")
}

func TestCheckout(t *testing.T) {
	svc, db, _, checkout := newReservationService(t)
	ctx := context.Background()
	mustCreateSlot(t, db, "2026-09-10", "10:30")

	booking, _, err := svc.Reserve(ctx, validReserveRequest())
	require.NoError(t, err)

	session, err := svc.Checkout(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, "cs_1", session.ID)

	assert.Equal(t, booking.ID, checkout.lastReq.BookingID)
	assert.Equal(t, int64(2500), checkout.lastReq.PriceCents)
	assert.Equal(t, "2026-09-10", checkout.lastReq.SelectedDate)
	assert.Equal(t, "10:30", checkout.lastReq.SelectedTime)
}

func TestCheckoutRoundsFractionalPrice(t *testing.T) {
	svc, db, _, checkout := newReservationService(t)
	ctx := context.Background()

	slot := &models.Slot{Date: "2026-09-10", TimeSlot: "10:30", Price: 24.99}
	require.NoError(t, db.CreateSlot(ctx, slot))

	booking, _, err := svc.Reserve(ctx, validReserveRequest())
	require.NoError(t, err)

	// 24.99 * 100 is 2498.999... in binary; truncation would undercharge.
	_, err = svc.Checkout(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2499), checkout.lastReq.PriceCents)
}

func TestCheckoutNotPending(t *testing.T) {
	svc, db, _, _ := newReservationService(t)
	ctx := context.Background()
	mustCreateSlot(t, db, "2026-09-10", "10:30")

	booking, _, err := svc.Reserve(ctx, validReserveRequest())
	require.NoError(t, err)
	require.NoError(t, db.ConfirmBooking(ctx, booking.ID, "cs_x", 25))

	_, err = svc.Checkout(ctx, booking.ID)
	assert.ErrorIs(t, err, database.ErrNotPending)
}

func TestCheckoutUnknownBooking(t *testing.T) {
	svc, _, _, _ := newReservationService(t)
	_, err := svc.Checkout(context.Background(), "missing")
	assert.ErrorIs(t, err, database.ErrBookingNotFound)
}

func TestCancel(t *testing.T) {
	svc, db, bus, _ := newReservationService(t)
	ctx := context.Background()
	slot := mustCreateSlot(t, db, "2026-09-10", "10:30")

	booking, _, err := svc.Reserve(ctx, validReserveRequest())
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	got, err := db.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.CurrentBookings)

	require.Len(t, bus.published, 2)
	assert.Equal(t, events.EventBookingCancelled, bus.published[1].Type)
}
