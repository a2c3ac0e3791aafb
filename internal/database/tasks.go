package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"visado/internal/models"
)

func (db *DB) CreateNotificationTask(ctx context.Context, task *models.NotificationTask) error {
	now := time.Now()
	res, err := db.ExecContext(ctx,
		`INSERT INTO notification_tasks (task_type, booking_id, payload, status, attempts, created_at, updated_at)
         VALUES (?, ?, ?, ?, 0, ?, ?)`,
		task.TaskType, task.BookingID, task.Payload, models.TaskStatusPending, now, now)
	if err != nil {
		return fmt.Errorf("failed to create notification task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get task id: %w", err)
	}
	task.ID = id
	task.Status = models.TaskStatusPending
	task.CreatedAt = now
	task.UpdatedAt = now
	return nil
}

func (db *DB) GetNotificationTask(ctx context.Context, id int64) (*models.NotificationTask, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, task_type, booking_id, payload, status, attempts, last_error, created_at, updated_at
         FROM notification_tasks WHERE id = ?`, id)

	var t models.NotificationTask
	var lastErr sql.NullString
	err := row.Scan(&t.ID, &t.TaskType, &t.BookingID, &t.Payload, &t.Status,
		&t.Attempts, &lastErr, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification task: %w", err)
	}
	t.LastError = lastErr.String
	return &t, nil
}

func (db *DB) GetPendingNotificationTasks(ctx context.Context, limit int) ([]*models.NotificationTask, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, task_type, booking_id, payload, status, attempts, last_error, created_at, updated_at
         FROM notification_tasks WHERE status = ? ORDER BY created_at LIMIT ?`,
		models.TaskStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.NotificationTask
	for rows.Next() {
		var t models.NotificationTask
		var lastErr sql.NullString
		if err := rows.Scan(&t.ID, &t.TaskType, &t.BookingID, &t.Payload, &t.Status,
			&t.Attempts, &lastErr, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		t.LastError = lastErr.String
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}

func (db *DB) UpdateNotificationTask(ctx context.Context, task *models.NotificationTask) error {
	_, err := db.ExecContext(ctx,
		`UPDATE notification_tasks
         SET payload = ?, status = ?, attempts = ?, last_error = ?, updated_at = ?
         WHERE id = ?`,
		task.Payload, task.Status, task.Attempts, nullString(task.LastError), time.Now(), task.ID)
	if err != nil {
		return fmt.Errorf("failed to update notification task: %w", err)
	}
	return nil
}
