package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"visado/internal/database"
	"visado/internal/domain"
	"visado/internal/metrics"
	"visado/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type taskStore interface {
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	GetSlot(ctx context.Context, id string) (*models.Slot, error)
	CreateNotificationTask(ctx context.Context, task *models.NotificationTask) error
	GetNotificationTask(ctx context.Context, id int64) (*models.NotificationTask, error)
	GetPendingNotificationTasks(ctx context.Context, limit int) ([]*models.NotificationTask, error)
	UpdateNotificationTask(ctx context.Context, task *models.NotificationTask) error
}

// NotifyWorker drains notification_tasks and runs the post-payment
// side effects: calendar event, owner email, customer email. Each
// completed step is recorded in the task payload so a retry never
// repeats it.
type NotifyWorker struct {
	store         taskStore
	calendar      domain.CalendarClient
	mailer        domain.EmailSender
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.NotificationTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

func NewNotifyWorker(store taskStore, cal domain.CalendarClient, mailer domain.EmailSender, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *NotifyWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}

	return &NotifyWorker{
		store:         store,
		calendar:      cal,
		mailer:        mailer,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan models.NotificationTask, 128),
		redisQueueKey: "notify:queue",
		deadLetterKey: "notify:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        logger,
	}
}

// EnqueueConfirmation persists a confirmation task and schedules it
// via redis or the in-memory queue.
func (w *NotifyWorker) EnqueueConfirmation(ctx context.Context, bookingID string) error {
	if bookingID == "" {
		return errors.New("booking id is required")
	}

	payload, err := json.Marshal(models.ConfirmationPayload{BookingID: bookingID})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.NotificationTask{
		TaskType:  models.TaskTypeConfirmation,
		BookingID: bookingID,
		Payload:   string(payload),
	}

	if err := w.store.CreateNotificationTask(ctx, &task); err != nil {
		return fmt.Errorf("persist notification task: %w", err)
	}

	// Try redis first for durability across instances.
	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.logger.Warn().Err(err).Msg("Redis push failed, falling back to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("In-memory queue full, task left to polling")
	}

	return nil
}

// Start launches the main loop; stops when ctx is done.
func (w *NotifyWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("Notification worker started")
	defer w.logger.Info().Msg("Notification worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		tasks, err := w.store.GetPendingNotificationTasks(ctx, w.batchSize)
		if err != nil {
			w.logger.Error().Err(err).Msg("Failed to fetch pending tasks")
			time.Sleep(w.pollInterval)
			continue
		}
		if len(tasks) == 0 {
			time.Sleep(w.pollInterval)
			continue
		}

		for _, t := range tasks {
			w.processTask(ctx, t)
		}
	}
}

func (w *NotifyWorker) tryLocalQueue() (models.NotificationTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.NotificationTask{}, false
	}
}

func (w *NotifyWorker) tryRedis(ctx context.Context) (models.NotificationTask, bool) {
	if w.redis == nil {
		return models.NotificationTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) {
			return models.NotificationTask{}, false
		}
		w.logger.Error().Err(err).Msg("Redis BRPOP error")
		return models.NotificationTask{}, false
	}
	if len(res) != 2 {
		return models.NotificationTask{}, false
	}
	var task models.NotificationTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("Failed to decode redis task")
		return models.NotificationTask{}, false
	}
	return task, true
}

// eligible gates retried tasks on exponential backoff without a
// dedicated schedule column.
func (w *NotifyWorker) eligible(task *models.NotificationTask) bool {
	if task.Attempts == 0 {
		return true
	}
	return time.Since(task.UpdatedAt) >= w.retryPolicy.NextDelay(task.Attempts)
}

func (w *NotifyWorker) processTask(ctx context.Context, task *models.NotificationTask) {
	// Queue copies go stale: a task drained by the DB poll can still
	// sit in redis with a payload from before its steps completed.
	// The row is the source of truth for status and step progress.
	current, err := w.store.GetNotificationTask(ctx, task.ID)
	if err != nil {
		if !errors.Is(err, database.ErrTaskNotFound) {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to load task")
		}
		return
	}
	if current.Status != models.TaskStatusPending {
		return
	}
	*task = *current

	if !w.eligible(task) {
		return
	}

	var payload models.ConfirmationPayload
	if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if task.TaskType != models.TaskTypeConfirmation {
		w.failTask(ctx, task, fmt.Errorf("unknown task type: %s", task.TaskType))
		return
	}

	err = w.runConfirmation(ctx, &payload)

	// Persist step progress regardless of outcome.
	if data, merr := json.Marshal(payload); merr == nil {
		task.Payload = string(data)
	}

	if err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	task.Status = models.TaskStatusDone
	task.LastError = ""
	if err := w.store.UpdateNotificationTask(ctx, task); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to mark task done")
	}
}

func (w *NotifyWorker) runConfirmation(ctx context.Context, payload *models.ConfirmationPayload) error {
	booking, err := w.store.GetBooking(ctx, payload.BookingID)
	if err != nil {
		return fmt.Errorf("load booking: %w", err)
	}
	slot, err := w.store.GetSlot(ctx, booking.SlotID)
	if err != nil {
		return fmt.Errorf("load slot: %w", err)
	}

	if !payload.CalendarDone {
		link, err := w.calendar.CreateEvent(ctx, booking, slot)
		switch {
		case err == nil:
			payload.MeetLink = link
			payload.CalendarDone = true
		case errors.Is(err, database.ErrCalendarNotConnected):
			// No calendar hooked up; emails still go out.
			w.logger.Warn().Str("booking_id", booking.ID).Msg("Calendar not connected, skipping event")
			payload.CalendarDone = true
		default:
			metrics.IncNotificationFailure("calendar")
			return fmt.Errorf("create calendar event: %w", err)
		}
	}

	if !payload.OwnerEmailDone {
		if err := w.mailer.SendOwnerNotification(booking, slot); err != nil {
			metrics.IncNotificationFailure("owner_email")
			return fmt.Errorf("owner email: %w", err)
		}
		payload.OwnerEmailDone = true
	}

	if !payload.CustomerEmailDone {
		if err := w.mailer.SendCustomerConfirmation(booking, slot, payload.MeetLink); err != nil {
			metrics.IncNotificationFailure("customer_email")
			return fmt.Errorf("customer email: %w", err)
		}
		payload.CustomerEmailDone = true
	}

	return nil
}

func (w *NotifyWorker) retryOrFail(ctx context.Context, task *models.NotificationTask, cause error) {
	task.Attempts++
	task.LastError = cause.Error()

	if task.Attempts >= w.retryPolicy.MaxRetries {
		task.Status = models.TaskStatusFailed
		if err := w.store.UpdateNotificationTask(ctx, task); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to mark task failed")
		}
		w.pushDeadLetter(ctx, task)
		return
	}

	task.Status = models.TaskStatusPending
	if err := w.store.UpdateNotificationTask(ctx, task); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to mark task for retry")
	}
	w.logger.Warn().Err(cause).Int64("task_id", task.ID).Int("attempts", task.Attempts).Msg("Notification task will retry")
}

func (w *NotifyWorker) failTask(ctx context.Context, task *models.NotificationTask, cause error) {
	task.Status = models.TaskStatusFailed
	task.LastError = cause.Error()
	if err := w.store.UpdateNotificationTask(ctx, task); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to mark task failed")
	}
	w.pushDeadLetter(ctx, task)
}

func (w *NotifyWorker) pushRedis(ctx context.Context, task models.NotificationTask) error {
	if w.redis == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *NotifyWorker) pushDeadLetter(ctx context.Context, task *models.NotificationTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to encode deadletter task")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to push deadletter task")
	}
}
