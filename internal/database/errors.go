package database

import "errors"

var (
	ErrSlotNotFound    = errors.New("slot not found")
	ErrSlotFull        = errors.New("slot is no longer available")
	ErrSlotTaken       = errors.New("slot already exists for this date and time")
	ErrSlotInUse       = errors.New("slot has active bookings")
	ErrBookingNotFound = errors.New("booking not found")
	// ErrDuplicatePayment signals a webhook redelivery: the payment id
	// is already attached to a confirmed booking.
	ErrDuplicatePayment     = errors.New("payment already processed")
	ErrNotPending           = errors.New("booking is not pending")
	ErrTaskNotFound         = errors.New("notification task not found")
	ErrCalendarNotConnected = errors.New("calendar credentials not configured")
)
