package models

// CheckoutRequest carries everything the hosted payment page needs.
// All fields ride along as session metadata so the asynchronous webhook
// can be reconciled later; BookingID is the primary reconciliation key.
type CheckoutRequest struct {
	BookingID    string
	VisaType     string
	PriceCents   int64
	Name         string
	Email        string
	Phone        string
	Invitados    string
	Comment      string
	SelectedDate string // YYYY-MM-DD
	SelectedTime string // HH:MM
}

// Metadata flattens the request into gateway session metadata.
func (r CheckoutRequest) Metadata() map[string]string {
	return map[string]string{
		"booking_id":    r.BookingID,
		"visa_type":     r.VisaType,
		"name":          r.Name,
		"email":         r.Email,
		"phone":         r.Phone,
		"invitados":     r.Invitados,
		"comment":       r.Comment,
		"selected_date": r.SelectedDate,
		"selected_time": r.SelectedTime,
	}
}

// CheckoutSession is the gateway's answer: where to send the customer.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// PaymentEvent is a verified webhook notification, reduced to what the
// reconciler needs.
type PaymentEvent struct {
	Type        string
	PaymentID   string
	AmountTotal int64 // cents
	Metadata    map[string]string
}

// Completed reports whether the event confirms a captured payment.
func (e *PaymentEvent) Completed() bool {
	return e.Type == "checkout.session.completed"
}

func (e *PaymentEvent) meta(key string) string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata[key]
}

func (e *PaymentEvent) BookingID() string    { return e.meta("booking_id") }
func (e *PaymentEvent) Email() string        { return e.meta("email") }
func (e *PaymentEvent) VisaType() string     { return e.meta("visa_type") }
func (e *PaymentEvent) Name() string         { return e.meta("name") }
func (e *PaymentEvent) Phone() string        { return e.meta("phone") }
func (e *PaymentEvent) Invitados() string    { return e.meta("invitados") }
func (e *PaymentEvent) Comment() string      { return e.meta("comment") }
func (e *PaymentEvent) SelectedDate() string { return e.meta("selected_date") }
func (e *PaymentEvent) SelectedTime() string { return e.meta("selected_time") }

// AmountEUR converts the captured total to euros.
func (e *PaymentEvent) AmountEUR() float64 {
	return float64(e.AmountTotal) / 100
}
