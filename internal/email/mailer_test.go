package email

import (
	"bytes"
	"testing"
	"time"

	"visado/internal/config"
	"visado/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "gopkg.in/gomail.v2"
)

func newTestMailer(t *testing.T) (*Mailer, *[]*gomail.Message) {
	t.Helper()
	logger := zerolog.Nop()
	m, err := NewMailer(config.EmailConfig{
		Enabled: true,
		Host:    "localhost",
		Port:    587,
		From:    "citas@example.com",
		Owner:   "owner@example.com",
	}, "Europe/Madrid", &logger)
	require.NoError(t, err)

	var sent []*gomail.Message
	m.send = func(msg *gomail.Message) error {
		sent = append(sent, msg)
		return nil
	}
	return m, &sent
}

func renderMessage(t *testing.T, msg *gomail.Message) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func testBookingAndSlot() (*models.Booking, *models.Slot) {
	booking := &models.Booking{
		ID:            "bk-1",
		CustomerName:  "Ana",
		CustomerEmail: "ana@example.com",
		CustomerPhone: "+34600000000",
		VisaType:      models.VisaNomada,
		Price:         25,
	}
	slot := &models.Slot{
		Date:            "2026-09-10",
		TimeSlot:        "10:30",
		DurationMinutes: 30,
	}
	return booking, slot
}

func TestSendOwnerNotification(t *testing.T) {
	m, sent := newTestMailer(t)
	booking, slot := testBookingAndSlot()

	err := m.SendOwnerNotification(booking, slot)
	require.NoError(t, err)
	require.Len(t, *sent, 1)

	msg := (*sent)[0]
	assert.Equal(t, []string{"owner@example.com"}, msg.GetHeader("To"))
	assert.Contains(t, msg.GetHeader("Subject")[0], "Ana")

	raw := renderMessage(t, msg)
	assert.Contains(t, raw, "NOMADA")
	assert.Contains(t, raw, "2026-09-10")
}

func TestSendCustomerConfirmation(t *testing.T) {
	m, sent := newTestMailer(t)
	booking, slot := testBookingAndSlot()

	err := m.SendCustomerConfirmation(booking, slot, "https://meet.google.com/abc")
	require.NoError(t, err)
	require.Len(t, *sent, 1)

	msg := (*sent)[0]
	assert.Equal(t, []string{"ana@example.com"}, msg.GetHeader("To"))

	raw := renderMessage(t, msg)
	assert.Contains(t, raw, "meet.google.com/abc")
	assert.Contains(t, raw, "consulta.ics")
	assert.Contains(t, raw, "text/calendar")
}

func TestSendCustomerConfirmationNoMeetLink(t *testing.T) {
	m, sent := newTestMailer(t)
	booking, slot := testBookingAndSlot()

	err := m.SendCustomerConfirmation(booking, slot, "")
	require.NoError(t, err)

	raw := renderMessage(t, (*sent)[0])
	assert.NotContains(t, raw, "Videollamada")
}

func TestBuildICS(t *testing.T) {
	booking, slot := testBookingAndSlot()
	loc, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)

	ics, err := buildICS(booking, slot, "https://meet.google.com/abc", loc)
	require.NoError(t, err)

	// 10:30 Madrid in September is 08:30 UTC
	assert.Contains(t, ics, "DTSTART:20260910T083000Z")
	assert.Contains(t, ics, "DTEND:20260910T090000Z")
	assert.Contains(t, ics, "UID:bk-1@visado")
	assert.Contains(t, ics, "LOCATION:https://meet.google.com/abc")
}

func TestBuildICSBadSlot(t *testing.T) {
	booking, _ := testBookingAndSlot()
	loc, _ := time.LoadLocation("Europe/Madrid")

	_, err := buildICS(booking, &models.Slot{Date: "nope", TimeSlot: "10:30"}, "", loc)
	assert.Error(t, err)
}

func TestMailerDisabled(t *testing.T) {
	logger := zerolog.Nop()
	m, err := NewMailer(config.EmailConfig{}, "Europe/Madrid", &logger)
	require.NoError(t, err)

	var sent []*gomail.Message
	m.send = func(msg *gomail.Message) error {
		sent = append(sent, msg)
		return nil
	}

	booking, slot := testBookingAndSlot()
	require.NoError(t, m.SendOwnerNotification(booking, slot))
	require.NoError(t, m.SendCustomerConfirmation(booking, slot, ""))
	assert.Empty(t, sent)
}
