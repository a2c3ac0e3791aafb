package models

// DashboardStats is the admin overview snapshot.
type DashboardStats struct {
	TotalBookings     int        `json:"totalBookings"`
	PendingBookings   int        `json:"pendingBookings"`
	ConfirmedBookings int        `json:"confirmedBookings"`
	CancelledBookings int        `json:"cancelledBookings"`
	TotalRevenue      float64    `json:"totalRevenue"`
	AvailableSlots    int        `json:"availableSlots"`
	BookedSlots       int        `json:"bookedSlots"`
	RecentBookings    []*Booking `json:"recentBookings"`
}
