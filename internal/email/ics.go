package email

import (
	"fmt"
	"strings"
	"time"

	"visado/internal/models"
)

// buildICS renders a minimal VCALENDAR invite for the consultation.
// Times are emitted in UTC so clients agree on the instant regardless
// of their configured zone.
func buildICS(booking *models.Booking, slot *models.Slot, meetLink string, loc *time.Location) (string, error) {
	start, err := slot.StartTime(loc)
	if err != nil {
		return "", fmt.Errorf("invalid slot time: %w", err)
	}
	end := start.Add(time.Duration(slot.DurationMinutes) * time.Minute)

	const stamp = "20060102T150405Z"
	description := fmt.Sprintf("Consulta de visa (%s)", booking.VisaType)
	if meetLink != "" {
		description += "\\nVideollamada: " + meetLink
	}

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//visado//consultas//ES",
		"METHOD:REQUEST",
		"BEGIN:VEVENT",
		"UID:" + booking.ID + "@visado",
		"DTSTAMP:" + time.Now().UTC().Format(stamp),
		"DTSTART:" + start.UTC().Format(stamp),
		"DTEND:" + end.UTC().Format(stamp),
		"SUMMARY:Consulta de Visa - " + strings.ToUpper(booking.VisaType),
		"DESCRIPTION:" + description,
	}
	if meetLink != "" {
		lines = append(lines, "LOCATION:"+meetLink)
	}
	lines = append(lines,
		"STATUS:CONFIRMED",
		"END:VEVENT",
		"END:VCALENDAR",
	)

	return strings.Join(lines, "\r\n") + "\r\n", nil
}
