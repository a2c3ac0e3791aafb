package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusPublishSubscribe(t *testing.T) {
	bus := NewEventBus()

	var seen []*Event
	bus.Subscribe(EventBookingConfirmed, func(e *Event) error {
		seen = append(seen, e)
		return nil
	})

	payload := BookingEventPayload{
		BookingID: "b-1",
		SlotID:    "s-1",
		VisaType:  "nomada",
		Status:    "confirmed",
	}
	require.NoError(t, bus.PublishJSON(EventBookingConfirmed, payload))

	require.Len(t, seen, 1)
	decoded, err := DecodeBookingPayload(seen[0])
	require.NoError(t, err)
	assert.Equal(t, "b-1", decoded.BookingID)
	assert.Equal(t, "confirmed", decoded.Status)
	assert.False(t, seen[0].CreatedAt.IsZero())
}

func TestEventBusTypeIsolation(t *testing.T) {
	bus := NewEventBus()

	created, confirmed := 0, 0
	bus.Subscribe(EventBookingCreated, func(*Event) error { created++; return nil })
	bus.Subscribe(EventBookingConfirmed, func(*Event) error { confirmed++; return nil })

	require.NoError(t, bus.PublishJSON(EventBookingCreated, BookingEventPayload{BookingID: "b-1"}))

	assert.Equal(t, 1, created)
	assert.Equal(t, 0, confirmed)
}

func TestEventBusHandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := NewEventBus()

	called := false
	bus.Subscribe(EventBookingCancelled, func(*Event) error { return errors.New("boom") })
	bus.Subscribe(EventBookingCancelled, func(*Event) error { called = true; return nil })

	require.NoError(t, bus.PublishJSON(EventBookingCancelled, BookingEventPayload{BookingID: "b-2"}))
	assert.True(t, called)
}

func TestNilBusPublishJSON(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON(EventBookingCreated, nil))
}
