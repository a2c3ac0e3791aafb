package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"visado/internal/models"

	"github.com/google/uuid"
)

const slotColumns = `id, date, time_slot, max_bookings, current_bookings,
       is_available, duration_minutes, price, created_at, updated_at`

func scanSlot(row interface{ Scan(...any) error }) (*models.Slot, error) {
	var s models.Slot
	var avail int64
	err := row.Scan(
		&s.ID, &s.Date, &s.TimeSlot, &s.MaxBookings, &s.CurrentBookings,
		&avail, &s.DurationMinutes, &s.Price, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.IsAvailable = avail != 0
	return &s, nil
}

func (db *DB) CreateSlot(ctx context.Context, slot *models.Slot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	if slot.MaxBookings <= 0 {
		slot.MaxBookings = 1
	}
	if slot.DurationMinutes <= 0 {
		slot.DurationMinutes = models.DefaultSlotDurationMinutes
	}
	if slot.Price <= 0 {
		slot.Price = models.DefaultSlotPriceEUR
	}

	// Pre-check keeps the error friendly; the UNIQUE(date, time_slot)
	// constraint still backs it up under races.
	var existing string
	err := db.QueryRowContext(ctx,
		`SELECT id FROM availability_slots WHERE date = ? AND time_slot = ?`,
		slot.Date, slot.TimeSlot).Scan(&existing)
	if err == nil {
		return ErrSlotTaken
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check existing slot: %w", err)
	}

	now := time.Now()
	_, err = db.ExecContext(ctx,
		`INSERT INTO availability_slots (
            id, date, time_slot, max_bookings, current_bookings,
            is_available, duration_minutes, price, created_at, updated_at
        ) VALUES (?, ?, ?, ?, 0, 1, ?, ?, ?, ?)`,
		slot.ID, slot.Date, slot.TimeSlot, slot.MaxBookings,
		slot.DurationMinutes, slot.Price, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create slot: %w", err)
	}
	slot.CurrentBookings = 0
	slot.IsAvailable = true
	slot.CreatedAt = now
	slot.UpdatedAt = now
	return nil
}

func (db *DB) GetSlot(ctx context.Context, id string) (*models.Slot, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+slotColumns+` FROM availability_slots WHERE id = ?`, id)
	slot, err := scanSlot(row)
	if err == sql.ErrNoRows {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	return slot, nil
}

func (db *DB) GetSlotByDateTime(ctx context.Context, date, timeSlot string) (*models.Slot, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+slotColumns+` FROM availability_slots WHERE date = ? AND time_slot = ?`,
		date, timeSlot)
	slot, err := scanSlot(row)
	if err == sql.ErrNoRows {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slot by date/time: %w", err)
	}
	return slot, nil
}

func (db *DB) ListSlotsByDate(ctx context.Context, date string) ([]*models.Slot, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+slotColumns+` FROM availability_slots WHERE date = ? ORDER BY time_slot`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	defer rows.Close()
	return collectSlots(rows)
}

func (db *DB) ListSlotsInRange(ctx context.Context, from, to string) ([]*models.Slot, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+slotColumns+` FROM availability_slots
         WHERE date >= ? AND date <= ? ORDER BY date, time_slot`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots in range: %w", err)
	}
	defer rows.Close()
	return collectSlots(rows)
}

func collectSlots(rows *sql.Rows) ([]*models.Slot, error) {
	var slots []*models.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return slots, nil
}

// HoldSlot takes one unit of capacity. The capacity check and the
// increment are a single conditional update, so two concurrent holds
// on a capacity-1 slot cannot both succeed.
func (db *DB) HoldSlot(ctx context.Context, id string) error {
	return holdSlot(ctx, db.DB, id)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func holdSlot(ctx context.Context, ex execer, id string) error {
	res, err := ex.ExecContext(ctx,
		`UPDATE availability_slots
         SET current_bookings = current_bookings + 1,
             is_available = CASE WHEN current_bookings + 1 < max_bookings THEN 1 ELSE 0 END,
             updated_at = ?
         WHERE id = ? AND current_bookings < max_bookings`,
		time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to hold slot: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		var exists int
		if err := ex.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM availability_slots WHERE id = ?`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check slot existence: %w", err)
		}
		if exists == 0 {
			return ErrSlotNotFound
		}
		return ErrSlotFull
	}
	return nil
}

// ReleaseSlot gives one unit of capacity back, typically when a
// booking is cancelled. The counter never goes below zero.
func (db *DB) ReleaseSlot(ctx context.Context, id string) error {
	return releaseSlot(ctx, db.DB, id)
}

func releaseSlot(ctx context.Context, ex execer, id string) error {
	res, err := ex.ExecContext(ctx,
		`UPDATE availability_slots
         SET current_bookings = CASE WHEN current_bookings > 0 THEN current_bookings - 1 ELSE 0 END,
             is_available = 1,
             updated_at = ?
         WHERE id = ?`,
		time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to release slot: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// syncSlot recomputes the counter from the bookings that still hold
// the slot. Cancellation goes through here instead of a blind
// decrement: an overbooked recovery booking never took a capacity
// unit, so decrementing on its cancellation would free a seat some
// other active booking still holds.
func syncSlot(ctx context.Context, ex execer, id string) error {
	var active int64
	err := ex.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE slot_id = ? AND status IN (?, ?)`,
		id, models.StatusPending, models.StatusConfirmed).Scan(&active)
	if err != nil {
		return fmt.Errorf("failed to count active bookings: %w", err)
	}

	res, err := ex.ExecContext(ctx,
		`UPDATE availability_slots
         SET current_bookings = ?,
             is_available = CASE WHEN ? < max_bookings THEN 1 ELSE 0 END,
             updated_at = ?
         WHERE id = ?`,
		active, active, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to sync slot counter: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// DeleteSlot removes a slot that no active booking references.
func (db *DB) DeleteSlot(ctx context.Context, id string) error {
	var active int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE slot_id = ? AND status IN (?, ?)`,
		id, models.StatusPending, models.StatusConfirmed).Scan(&active)
	if err != nil {
		return fmt.Errorf("failed to count slot bookings: %w", err)
	}
	if active > 0 {
		return ErrSlotInUse
	}

	res, err := db.ExecContext(ctx, `DELETE FROM availability_slots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// CountSlotsByAvailability returns (available, full) counts from today onward.
func (db *DB) CountSlotsByAvailability(ctx context.Context, fromDate string) (int, int, error) {
	var available, full int
	err := db.QueryRowContext(ctx,
		`SELECT
            COALESCE(SUM(CASE WHEN current_bookings < max_bookings THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN current_bookings >= max_bookings THEN 1 ELSE 0 END), 0)
         FROM availability_slots WHERE date >= ?`, fromDate).Scan(&available, &full)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count slots: %w", err)
	}
	return available, full, nil
}
