// Command slotgen seeds availability_slots for the upcoming booking
// window: one slot per configured time on every business day. Existing
// slots are left untouched, so it is safe to run from cron.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"visado/internal/config"
	"visado/internal/database"
	"visado/internal/logging"
	"visado/internal/models"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	days := flag.Int("days", 0, "days ahead to generate (default: booking.window_days)")
	from := flag.String("from", "", "first date to generate, YYYY-MM-DD (default: tomorrow)")
	flag.Parse()

	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()

	loc, err := time.LoadLocation(cfg.Calendar.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Calendar.Timezone, err)
	}

	window := cfg.Booking.WindowDays
	if *days > 0 {
		window = *days
	}

	start := time.Now().In(loc).AddDate(0, 0, 1)
	if *from != "" {
		start, err = time.ParseInLocation("2006-01-02", *from, loc)
		if err != nil {
			return fmt.Errorf("invalid -from date %q: %w", *from, err)
		}
	}

	created, skipped := generate(context.Background(), db, cfg.Booking, start, window, &logger)
	logger.Info().Int("created", created).Int("skipped", skipped).Msg("Slot generation finished")
	return nil
}

func generate(ctx context.Context, db *database.DB, cfg config.BookingConfig, start time.Time, window int, logger *zerolog.Logger) (created, skipped int) {
	times := cfg.SlotTimes
	if len(times) == 0 {
		times = models.FallbackSlotTimes
	}

	for day := 0; day < window; day++ {
		date := start.AddDate(0, 0, day)
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}

		for _, timeSlot := range times {
			slot := &models.Slot{
				Date:            date.Format("2006-01-02"),
				TimeSlot:        timeSlot,
				DurationMinutes: int64(cfg.SlotDuration),
				Price:           cfg.DefaultPrice,
			}
			err := db.CreateSlot(ctx, slot)
			switch {
			case err == nil:
				created++
			case errors.Is(err, database.ErrSlotTaken):
				skipped++
			default:
				logger.Error().Err(err).Str("date", slot.Date).Str("time", timeSlot).Msg("Failed to create slot")
			}
		}
	}
	return created, skipped
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "slotgen").Logger()

	return cfg, logger, closer, nil
}
