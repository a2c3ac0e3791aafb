package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"visado/internal/models"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

const bookingColumns = `id, slot_id, customer_name, customer_email, customer_phone,
       visa_type, price, status, payment_id, invitados, comment, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (*models.Booking, error) {
	var b models.Booking
	var price sql.NullFloat64
	var paymentID, invitados, comment sql.NullString
	err := row.Scan(
		&b.ID, &b.SlotID, &b.CustomerName, &b.CustomerEmail, &b.CustomerPhone,
		&b.VisaType, &price, &b.Status, &paymentID, &invitados, &comment,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Price = price.Float64
	b.PaymentID = paymentID.String
	b.Invitados = invitados.String
	b.Comment = comment.String
	return &b, nil
}

func insertBooking(ctx context.Context, ex execer, b *models.Booking) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Status == "" {
		b.Status = models.StatusPending
	}
	now := time.Now()
	_, err := ex.ExecContext(ctx,
		`INSERT INTO bookings (
            id, slot_id, customer_name, customer_email, customer_phone,
            visa_type, price, status, payment_id, invitados, comment,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.SlotID, b.CustomerName, b.CustomerEmail, b.CustomerPhone,
		b.VisaType, nullFloat(b.Price), b.Status, nullString(b.PaymentID),
		nullString(b.Invitados), nullString(b.Comment), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatePayment
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

// ReserveSlot is the whole reservation in one transaction: take a
// capacity unit with a conditional update, then insert the pending
// booking. Either both writes land or neither does, so no orphaned
// pending booking can survive a partial failure.
func (db *DB) ReserveSlot(ctx context.Context, booking *models.Booking) (*models.Slot, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := holdSlot(ctx, tx, booking.SlotID); err != nil {
		return nil, err
	}

	booking.Status = models.StatusPending
	if err := insertBooking(ctx, tx, booking); err != nil {
		return nil, err
	}

	row := tx.QueryRowContext(ctx,
		`SELECT `+slotColumns+` FROM availability_slots WHERE id = ?`, booking.SlotID)
	slot, err := scanSlot(row)
	if err != nil {
		return nil, fmt.Errorf("failed to read slot snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reservation: %w", err)
	}
	return slot, nil
}

// CreateConfirmedBooking records a paid booking for which no pending
// record exists, taking a slot hold in the same transaction. When the
// slot is already at capacity the booking is stored anyway: the money
// is captured either way, and an operator resolves the overlap.
func (db *DB) CreateConfirmedBooking(ctx context.Context, booking *models.Booking) (overbooked bool, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	switch err := holdSlot(ctx, tx, booking.SlotID); {
	case err == nil:
	case errors.Is(err, ErrSlotFull):
		overbooked = true
	default:
		return false, err
	}

	booking.Status = models.StatusConfirmed
	if err := insertBooking(ctx, tx, booking); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit confirmed booking: %w", err)
	}
	return overbooked, nil
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

func (db *DB) GetBookingByPaymentID(ctx context.Context, paymentID string) (*models.Booking, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE payment_id = ?`, paymentID)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking by payment id: %w", err)
	}
	return b, nil
}

// FindPendingBooking matches a webhook without a booking id back to
// the reservation that started it.
func (db *DB) FindPendingBooking(ctx context.Context, slotID, email string) (*models.Booking, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
         WHERE slot_id = ? AND customer_email = ? AND status = ?
         ORDER BY created_at DESC LIMIT 1`,
		slotID, email, models.StatusPending)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pending booking: %w", err)
	}
	return b, nil
}

// ConfirmBooking promotes a pending booking after a verified payment.
// The price stored is the amount actually paid, not the quoted one.
// The slot counter is untouched: the pending booking was already
// counted when the slot was reserved.
func (db *DB) ConfirmBooking(ctx context.Context, id, paymentID string, paidPrice float64) error {
	res, err := db.ExecContext(ctx,
		`UPDATE bookings SET status = ?, payment_id = ?, price = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		models.StatusConfirmed, nullString(paymentID), paidPrice, time.Now(),
		id, models.StatusPending)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatePayment
		}
		return fmt.Errorf("failed to confirm booking: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		if _, err := db.GetBooking(ctx, id); err != nil {
			return err
		}
		return ErrNotPending
	}
	return nil
}

// UpdateBookingStatus is the plain admin status flip; it does not
// touch the slot counter. Use CancelBooking for cancellations.
func (db *DB) UpdateBookingStatus(ctx context.Context, id, status string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// CancelBooking flips the booking to cancelled and releases its slot
// in the same transaction. Cancelling twice is a no-op.
func (db *DB) CancelBooking(ctx context.Context, id string) (*models.Booking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	if b.Status == models.StatusCancelled {
		return b, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`,
		models.StatusCancelled, time.Now(), id); err != nil {
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}

	// Recount rather than decrement: see syncSlot.
	if err := syncSlot(ctx, tx, b.SlotID); err != nil && !errors.Is(err, ErrSlotNotFound) {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cancellation: %w", err)
	}
	b.Status = models.StatusCancelled
	return b, nil
}

// DeleteBooking removes a booking row outright. Kept for compensating
// cleanup paths; normal lifecycle goes through CancelBooking.
func (db *DB) DeleteBooking(ctx context.Context, id string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	return nil
}

func (db *DB) ListBookings(ctx context.Context, status, date string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings`
	var where []string
	args := []any{}
	if status != "" {
		where = append(where, `status = ?`)
		args = append(args, status)
	}
	if date != "" {
		where = append(where, `slot_id IN (SELECT id FROM availability_slots WHERE date = ?)`)
		args = append(args, date)
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (db *DB) CountBookingsByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM bookings GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count bookings: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// ConfirmedRevenue sums the paid amounts of confirmed bookings.
func (db *DB) ConfirmedRevenue(ctx context.Context) (float64, error) {
	var revenue float64
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(price), 0) FROM bookings WHERE status = ?`,
		models.StatusConfirmed).Scan(&revenue)
	if err != nil {
		return 0, fmt.Errorf("failed to sum revenue: %w", err)
	}
	return revenue, nil
}

func (db *DB) RecentBookings(ctx context.Context, limit int) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f float64) any {
	if f == 0 {
		return nil
	}
	return f
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
