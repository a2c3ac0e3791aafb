package models

import "time"

const (
	TaskStatusPending = "pending"
	TaskStatusDone    = "done"
	TaskStatusFailed  = "failed"
)

const TaskTypeConfirmation = "confirmation"

// NotificationTask is a persisted unit of best-effort post-payment
// work: calendar event plus the two notification emails.
type NotificationTask struct {
	ID        int64     `json:"id"`
	TaskType  string    `json:"task_type"`
	BookingID string    `json:"booking_id"`
	Payload   string    `json:"payload"`
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConfirmationPayload records which side effects already ran so a
// retried task never repeats a completed step.
type ConfirmationPayload struct {
	BookingID         string `json:"booking_id"`
	CalendarDone      bool   `json:"calendar_done"`
	MeetLink          string `json:"meet_link,omitempty"`
	OwnerEmailDone    bool   `json:"owner_email_done"`
	CustomerEmailDone bool   `json:"customer_email_done"`
}
