package models

import "time"

type Booking struct {
	ID            string    `json:"id"`
	SlotID        string    `json:"slot_id"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	CustomerPhone string    `json:"customer_phone"`
	VisaType      string    `json:"visa_type"`
	Price         float64   `json:"price"`
	Status        string    `json:"status"` // pending, confirmed, cancelled
	PaymentID     string    `json:"payment_id,omitempty"`
	Invitados     string    `json:"invitados,omitempty"`
	Comment       string    `json:"comment,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Active reports whether the booking still counts against its slot.
func (b *Booking) Active() bool {
	return b.Status == StatusPending || b.Status == StatusConfirmed
}

type Customer struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Invitados string `json:"invitados,omitempty"`
	Comment   string `json:"comment,omitempty"`
}
