package database

import (
	"context"
	"testing"

	"visado/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCustomerBooking(slotID string) *models.Booking {
	return &models.Booking{
		SlotID:        slotID,
		CustomerName:  "Lucía Pérez",
		CustomerEmail: "lucia@example.com",
		CustomerPhone: "+34611222333",
		VisaType:      models.VisaNomada,
		Price:         25,
	}
}

func TestReserveSlot(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	slot := mustCreateSlot(t, db, "2025-03-01", "09:00", 1)

	booking := testCustomerBooking(slot.ID)
	snapshot, err := db.ReserveSlot(ctx, booking)
	require.NoError(t, err)

	assert.NotEmpty(t, booking.ID)
	assert.Equal(t, models.StatusPending, booking.Status)
	assert.EqualValues(t, 1, snapshot.CurrentBookings)
	assert.False(t, snapshot.IsAvailable)

	t.Run("SecondReservationConflicts", func(t *testing.T) {
		other := testCustomerBooking(slot.ID)
		other.CustomerEmail = "otro@example.com"
		_, err := db.ReserveSlot(ctx, other)
		assert.ErrorIs(t, err, ErrSlotFull)

		// No booking row survived the failed attempt.
		bookings, err := db.ListBookings(ctx, "", "")
		require.NoError(t, err)
		assert.Len(t, bookings, 1)

		got, err := db.GetSlot(ctx, slot.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, got.CurrentBookings)
	})

	t.Run("UnknownSlot", func(t *testing.T) {
		_, err := db.ReserveSlot(ctx, testCustomerBooking("missing"))
		assert.ErrorIs(t, err, ErrSlotNotFound)
	})
}

func TestConfirmBooking(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	slot := mustCreateSlot(t, db, "2025-03-01", "09:00", 1)
	booking := testCustomerBooking(slot.ID)
	_, err := db.ReserveSlot(ctx, booking)
	require.NoError(t, err)

	require.NoError(t, db.ConfirmBooking(ctx, booking.ID, "cs_test_123", 30))

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)
	assert.Equal(t, "cs_test_123", got.PaymentID)
	// The stored price is the amount actually paid.
	assert.Equal(t, 30.0, got.Price)

	// Confirming does not double count the slot.
	gotSlot, err := db.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, gotSlot.CurrentBookings)

	t.Run("AlreadyConfirmed", func(t *testing.T) {
		err := db.ConfirmBooking(ctx, booking.ID, "cs_test_123", 30)
		assert.ErrorIs(t, err, ErrNotPending)
	})

	t.Run("UnknownBooking", func(t *testing.T) {
		err := db.ConfirmBooking(ctx, "missing", "cs_x", 25)
		assert.ErrorIs(t, err, ErrBookingNotFound)
	})
}

func TestGetBookingByPaymentID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	slot := mustCreateSlot(t, db, "2025-03-01", "09:00", 1)
	booking := testCustomerBooking(slot.ID)
	_, err := db.ReserveSlot(ctx, booking)
	require.NoError(t, err)
	require.NoError(t, db.ConfirmBooking(ctx, booking.ID, "cs_replay", 25))

	got, err := db.GetBookingByPaymentID(ctx, "cs_replay")
	require.NoError(t, err)
	assert.Equal(t, booking.ID, got.ID)

	_, err = db.GetBookingByPaymentID(ctx, "cs_unknown")
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestFindPendingBooking(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	slot := mustCreateSlot(t, db, "2025-03-01", "09:00", 2)
	booking := testCustomerBooking(slot.ID)
	_, err := db.ReserveSlot(ctx, booking)
	require.NoError(t, err)

	got, err := db.FindPendingBooking(ctx, slot.ID, "lucia@example.com")
	require.NoError(t, err)
	assert.Equal(t, booking.ID, got.ID)

	t.Run("WrongEmail", func(t *testing.T) {
		_, err := db.FindPendingBooking(ctx, slot.ID, "nadie@example.com")
		assert.ErrorIs(t, err, ErrBookingNotFound)
	})

	t.Run("ConfirmedDoesNotMatch", func(t *testing.T) {
		require.NoError(t, db.ConfirmBooking(ctx, booking.ID, "cs_1", 25))
		_, err := db.FindPendingBooking(ctx, slot.ID, "lucia@example.com")
		assert.ErrorIs(t, err, ErrBookingNotFound)
	})
}

func TestCreateConfirmedBooking(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	slot := mustCreateSlot(t, db, "2025-03-01", "09:00", 1)

	booking := testCustomerBooking(slot.ID)
	booking.PaymentID = "cs_direct"
	overbooked, err := db.CreateConfirmedBooking(ctx, booking)
	require.NoError(t, err)
	assert.False(t, overbooked)
	assert.Equal(t, models.StatusConfirmed, booking.Status)

	got, err := db.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.CurrentBookings)

	t.Run("FullSlotStillRecordsBooking", func(t *testing.T) {
		second := testCustomerBooking(slot.ID)
		second.CustomerEmail = "otra@example.com"
		second.PaymentID = "cs_direct_2"
		overbooked, err := db.CreateConfirmedBooking(ctx, second)
		require.NoError(t, err)
		assert.True(t, overbooked)

		got, err := db.GetSlot(ctx, slot.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, got.CurrentBookings)
	})

	t.Run("DuplicatePaymentID", func(t *testing.T) {
		dup := testCustomerBooking(slot.ID)
		dup.PaymentID = "cs_direct"
		_, err := db.CreateConfirmedBooking(ctx, dup)
		assert.ErrorIs(t, err, ErrDuplicatePayment)
	})
}

func TestCancelBooking(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	slot := mustCreateSlot(t, db, "2025-03-01", "09:00", 1)
	booking := testCustomerBooking(slot.ID)
	_, err := db.ReserveSlot(ctx, booking)
	require.NoError(t, err)
	require.NoError(t, db.ConfirmBooking(ctx, booking.ID, "cs_1", 25))

	cancelled, err := db.CancelBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	// Cancellation released the slot.
	got, err := db.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, got.CurrentBookings)
	assert.True(t, got.IsAvailable)

	t.Run("CancelTwiceIsNoop", func(t *testing.T) {
		_, err := db.CancelBooking(ctx, booking.ID)
		require.NoError(t, err)

		got, err := db.GetSlot(ctx, slot.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 0, got.CurrentBookings)
	})
}

func TestCancelOverbookedBookingKeepsSeatHeld(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	slot := mustCreateSlot(t, db, "2025-03-01", "09:00", 1)
	pending := testCustomerBooking(slot.ID)
	_, err := db.ReserveSlot(ctx, pending)
	require.NoError(t, err)

	// The recovery booking lands on the already-full slot without
	// taking a capacity unit.
	recovered := testCustomerBooking(slot.ID)
	recovered.CustomerEmail = "otra@example.com"
	recovered.PaymentID = "cs_over"
	overbooked, err := db.CreateConfirmedBooking(ctx, recovered)
	require.NoError(t, err)
	require.True(t, overbooked)

	// Cancelling it must not free the unit the pending booking holds.
	_, err = db.CancelBooking(ctx, recovered.ID)
	require.NoError(t, err)

	got, err := db.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.CurrentBookings)
	assert.False(t, got.IsAvailable)

	third := testCustomerBooking(slot.ID)
	third.CustomerEmail = "tercera@example.com"
	_, err = db.ReserveSlot(ctx, third)
	assert.ErrorIs(t, err, ErrSlotFull)

	// Once the pending booking goes too, the seat opens up again.
	_, err = db.CancelBooking(ctx, pending.ID)
	require.NoError(t, err)

	got, err = db.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, got.CurrentBookings)
	assert.True(t, got.IsAvailable)
}

func TestBookingStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	slotA := mustCreateSlot(t, db, "2025-03-01", "09:00", 1)
	slotB := mustCreateSlot(t, db, "2025-03-01", "10:30", 1)

	a := testCustomerBooking(slotA.ID)
	_, err := db.ReserveSlot(ctx, a)
	require.NoError(t, err)
	require.NoError(t, db.ConfirmBooking(ctx, a.ID, "cs_a", 25))

	b := testCustomerBooking(slotB.ID)
	b.CustomerEmail = "otro@example.com"
	_, err = db.ReserveSlot(ctx, b)
	require.NoError(t, err)

	counts, err := db.CountBookingsByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.StatusConfirmed])
	assert.Equal(t, 1, counts[models.StatusPending])

	revenue, err := db.ConfirmedRevenue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 25.0, revenue)

	recent, err := db.RecentBookings(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}
