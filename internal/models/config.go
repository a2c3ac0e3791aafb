package models

import "time"

// AdminConfig drives the chat classifier. Persisted as a single row so
// edits survive restarts.
type AdminConfig struct {
	AIContext    string    `json:"aiContext"`
	MaxQuestions int       `json:"maxQuestions"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CalendarCredentials is the persisted Google Calendar connection. The
// OAuth flow itself happens elsewhere; tokens arrive already granted.
type CalendarCredentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	CalendarID   string    `json:"calendar_id"`
	AccountEmail string    `json:"account_email"`
	UpdatedAt    time.Time `json:"updated_at"`
}
