package domain

import (
	"context"
	"time"

	"visado/internal/models"
)

// Store is the persistence surface the services and handlers consume.
// *database.DB implements it; tests substitute mocks.
type Store interface {
	CreateSlot(ctx context.Context, slot *models.Slot) error
	GetSlot(ctx context.Context, id string) (*models.Slot, error)
	GetSlotByDateTime(ctx context.Context, date, timeSlot string) (*models.Slot, error)
	ListSlotsByDate(ctx context.Context, date string) ([]*models.Slot, error)
	ListSlotsInRange(ctx context.Context, from, to string) ([]*models.Slot, error)
	HoldSlot(ctx context.Context, id string) error
	ReleaseSlot(ctx context.Context, id string) error
	DeleteSlot(ctx context.Context, id string) error
	CountSlotsByAvailability(ctx context.Context, fromDate string) (int, int, error)

	ReserveSlot(ctx context.Context, booking *models.Booking) (*models.Slot, error)
	CreateConfirmedBooking(ctx context.Context, booking *models.Booking) (bool, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	GetBookingByPaymentID(ctx context.Context, paymentID string) (*models.Booking, error)
	FindPendingBooking(ctx context.Context, slotID, email string) (*models.Booking, error)
	ConfirmBooking(ctx context.Context, id, paymentID string, paidPrice float64) error
	UpdateBookingStatus(ctx context.Context, id, status string) error
	CancelBooking(ctx context.Context, id string) (*models.Booking, error)
	ListBookings(ctx context.Context, status, date string) ([]*models.Booking, error)
	CountBookingsByStatus(ctx context.Context) (map[string]int, error)
	ConfirmedRevenue(ctx context.Context) (float64, error)
	RecentBookings(ctx context.Context, limit int) ([]*models.Booking, error)

	GetAdminConfig(ctx context.Context) (*models.AdminConfig, error)
	SaveAdminConfig(ctx context.Context, cfg *models.AdminConfig) error
	GetCalendarCredentials(ctx context.Context) (*models.CalendarCredentials, error)
	SaveCalendarCredentials(ctx context.Context, c *models.CalendarCredentials) error
	DeleteCalendarCredentials(ctx context.Context) error
}

// StateRepository keeps per-visitor chat intake state.
type StateRepository interface {
	GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error)
	SetSession(ctx context.Context, session *models.ChatSession) error
	ClearSession(ctx context.Context, sessionID string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// CheckoutClient talks to the hosted payment page provider.
type CheckoutClient interface {
	CreateCheckoutSession(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutSession, error)
}

// CalendarClient creates the consultation event and returns the
// video-call link, if the provider issued one.
type CalendarClient interface {
	CreateEvent(ctx context.Context, booking *models.Booking, slot *models.Slot) (meetLink string, err error)
}

// EmailSender delivers the two post-payment notifications.
type EmailSender interface {
	SendOwnerNotification(booking *models.Booking, slot *models.Slot) error
	SendCustomerConfirmation(booking *models.Booking, slot *models.Slot, meetLink string) error
}

// NotifyEnqueuer schedules best-effort post-confirmation work.
type NotifyEnqueuer interface {
	EnqueueConfirmation(ctx context.Context, bookingID string) error
}

// TextGenerator is the model endpoint behind the chat classifier.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
