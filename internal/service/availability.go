package service

import (
	"context"
	"fmt"
	"time"

	"visado/internal/domain"
	"visado/internal/models"

	"github.com/rs/zerolog"
)

// AvailabilityService answers the public calendar queries. When the
// store is unreachable it degrades to a fixed business-day grid so the
// booking page never goes blank.
type AvailabilityService struct {
	store      domain.Store
	loc        *time.Location
	windowDays int
	logger     *zerolog.Logger

	// now is swapped out in tests.
	now func() time.Time
}

func NewAvailabilityService(store domain.Store, timezone string, windowDays int, logger *zerolog.Logger) (*AvailabilityService, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid availability timezone %q: %w", timezone, err)
	}
	if windowDays <= 0 {
		windowDays = models.DefaultAvailabilityWindow
	}
	return &AvailabilityService{
		store:      store,
		loc:        loc,
		windowDays: windowDays,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Dates lists every day in the booking window that has slot rows,
// with a live seat count. Slots already in the past today are not
// counted.
func (s *AvailabilityService) Dates(ctx context.Context) []models.DateAvailability {
	now := s.now().In(s.loc)
	from := now.Format("2006-01-02")
	to := now.AddDate(0, 0, s.windowDays).Format("2006-01-02")

	slots, err := s.store.ListSlotsInRange(ctx, from, to)
	if err != nil {
		s.logger.Error().Err(err).Msg("Slot store unreachable, serving fallback dates")
		return s.fallbackDates(now)
	}

	byDate := make(map[string]*models.DateAvailability)
	var order []string
	for _, slot := range slots {
		day, ok := byDate[slot.Date]
		if !ok {
			day = &models.DateAvailability{Date: slot.Date}
			byDate[slot.Date] = day
			order = append(order, slot.Date)
		}
		if slot.IsAvailable && !s.past(now, slot) {
			day.AvailableSlots++
			day.HasSlots = true
		}
	}

	out := make([]models.DateAvailability, 0, len(order))
	for _, date := range order {
		out = append(out, *byDate[date])
	}
	return out
}

// Times lists the slots of one date for the booking UI.
func (s *AvailabilityService) Times(ctx context.Context, date string) ([]models.TimeSlotView, error) {
	if _, err := time.ParseInLocation("2006-01-02", date, s.loc); err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}

	now := s.now().In(s.loc)

	slots, err := s.store.ListSlotsByDate(ctx, date)
	if err != nil {
		s.logger.Error().Err(err).Str("date", date).Msg("Slot store unreachable, serving fallback times")
		return s.fallbackTimes(now, date), nil
	}

	out := make([]models.TimeSlotView, 0, len(slots))
	for _, slot := range slots {
		out = append(out, models.TimeSlotView{
			ID:              slot.ID,
			Time:            slot.TimeSlot,
			Available:       slot.IsAvailable && !s.past(now, slot),
			CurrentBookings: slot.CurrentBookings,
			MaxBookings:     slot.MaxBookings,
		})
	}
	return out, nil
}

// past reports whether the slot's start time has already gone by.
func (s *AvailabilityService) past(now time.Time, slot *models.Slot) bool {
	start, err := slot.StartTime(s.loc)
	if err != nil {
		return false
	}
	return !start.After(now)
}

// fallbackDates serves the next business days on the degraded path.
func (s *AvailabilityService) fallbackDates(now time.Time) []models.DateAvailability {
	out := make([]models.DateAvailability, 0, models.FallbackWindowDays)
	day := now
	for len(out) < models.FallbackWindowDays {
		day = day.AddDate(0, 0, 1)
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		out = append(out, models.DateAvailability{
			Date:           day.Format("2006-01-02"),
			HasSlots:       true,
			AvailableSlots: len(models.FallbackSlotTimes),
			Fallback:       true,
		})
	}
	return out
}

func (s *AvailabilityService) fallbackTimes(now time.Time, date string) []models.TimeSlotView {
	out := make([]models.TimeSlotView, 0, len(models.FallbackSlotTimes))
	for _, t := range models.FallbackSlotTimes {
		slot := &models.Slot{Date: date, TimeSlot: t}
		out = append(out, models.TimeSlotView{
			Time:        t,
			Available:   !s.past(now, slot),
			MaxBookings: 1,
			Fallback:    true,
		})
	}
	return out
}
