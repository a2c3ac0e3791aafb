package models

import "time"

type Slot struct {
	ID              string    `json:"id"`
	Date            string    `json:"date"`      // YYYY-MM-DD
	TimeSlot        string    `json:"time_slot"` // HH:MM, local time
	MaxBookings     int64     `json:"max_bookings"`
	CurrentBookings int64     `json:"current_bookings"`
	IsAvailable     bool      `json:"is_available"`
	DurationMinutes int64     `json:"duration_minutes"`
	Price           float64   `json:"price"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// StartTime resolves the slot's date and time in the given location.
func (s *Slot) StartTime(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", s.Date+" "+s.TimeSlot, loc)
}

// DateAvailability summarizes one calendar day for the booking UI.
// Fallback marks entries served from the degraded fixed grid.
type DateAvailability struct {
	Date           string `json:"date"`
	HasSlots       bool   `json:"hasSlots"`
	AvailableSlots int    `json:"availableSlots"`
	Fallback       bool   `json:"fallback,omitempty"`
}

// TimeSlotView is the per-slot listing entry for a single date.
type TimeSlotView struct {
	ID              string `json:"id"`
	Time            string `json:"time"`
	Available       bool   `json:"available"`
	CurrentBookings int64  `json:"currentBookings"`
	MaxBookings     int64  `json:"maxBookings"`
	Fallback        bool   `json:"fallback,omitempty"`
}
