package service

import (
	"context"
	"encoding/json"
	"testing"

	"visado/internal/database"
	"visado/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func mustCreateSlot(t *testing.T, db *database.DB, date, timeSlot string) *models.Slot {
	t.Helper()
	slot := &models.Slot{Date: date, TimeSlot: timeSlot}
	require.NoError(t, db.CreateSlot(context.Background(), slot))
	return slot
}

type fakeBus struct {
	published []busEvent
	err       error
}

type busEvent struct {
	Type    string
	Payload interface{}
}

func (f *fakeBus) PublishJSON(eventType string, payload interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, busEvent{Type: eventType, Payload: payload})
	return nil
}

type fakeCheckout struct {
	session *models.CheckoutSession
	err     error
	lastReq models.CheckoutRequest
}

func (f *fakeCheckout) CreateCheckoutSession(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutSession, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

type fakeNotify struct {
	enqueued []string
	err      error
}

func (f *fakeNotify) EnqueueConfirmation(ctx context.Context, bookingID string) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, bookingID)
	return nil
}

type fakeGenerator struct {
	reply string
	err   error
	calls int
	last  string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	f.last = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func paymentEvent(bookingID, paymentID string, extra map[string]string) *models.PaymentEvent {
	meta := map[string]string{
		"booking_id":    bookingID,
		"visa_type":     models.VisaEstudio,
		"name":          "Ana",
		"email":         "ana@example.com",
		"phone":         "+34600000000",
		"selected_date": "2026-09-10",
		"selected_time": "10:30",
	}
	for k, v := range extra {
		meta[k] = v
	}
	return &models.PaymentEvent{
		Type:        "checkout.session.completed",
		PaymentID:   paymentID,
		AmountTotal: 2500,
		Metadata:    meta,
	}
}

func decodePayload(t *testing.T, payload interface{}) map[string]interface{} {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}
