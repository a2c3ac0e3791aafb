package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"visado/internal/api"
	"visado/internal/calendar"
	"visado/internal/classifier"
	"visado/internal/config"
	"visado/internal/database"
	"visado/internal/domain"
	"visado/internal/email"
	"visado/internal/events"
	"visado/internal/logging"
	"visado/internal/metrics"
	"visado/internal/payments"
	"visado/internal/repository"
	"visado/internal/service"
	"visado/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stateRepo := initStateRepository(cfg, redisClient, &logger)

	checkout := payments.NewClient(cfg.Payments, &logger)

	calendarService, err := calendar.NewService(cfg.Calendar, db, &logger)
	if err != nil {
		return fmt.Errorf("init calendar: %w", err)
	}

	mailer, err := email.NewMailer(cfg.Email, cfg.Calendar.Timezone, &logger)
	if err != nil {
		return fmt.Errorf("init mailer: %w", err)
	}

	ollama := classifier.NewOllamaClient(cfg.Classifier, &logger)

	eventBus := events.NewEventBus()
	subscribeEventLogging(eventBus, &logger)

	notifyWorker := worker.NewNotifyWorker(db, calendarService, mailer, redisClient, worker.RetryPolicy{}, &logger)
	go notifyWorker.Start(ctx)

	backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
	go backupService.Start(ctx)

	availability, err := service.NewAvailabilityService(db, cfg.Calendar.Timezone, cfg.Booking.WindowDays, &logger)
	if err != nil {
		return fmt.Errorf("init availability: %w", err)
	}

	deps := api.Deps{
		Availability: availability,
		Reservations: service.NewReservationService(db, eventBus, checkout, &logger),
		Verifier:     checkout,
		Reconciler:   service.NewReconcilerService(db, eventBus, notifyWorker, &logger),
		Chat:         service.NewChatService(stateRepo, db, ollama, cfg.Booking.RateLimitEvents, cfg.Booking.RateLimitWindow, &logger),
		Admin:        service.NewAdminService(db, &logger),
	}

	server := api.NewServer(cfg.Server, cfg.API, deps, &logger)

	startMetrics(ctx, cfg, &logger)

	return serve(ctx, server, &logger)
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
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initStateRepository picks redis with in-memory failover when redis is
// reachable, plain in-memory otherwise.
func initStateRepository(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.StateRepository {
	memory := repository.NewMemoryStateRepository(cfg.Booking.SessionTTL)
	if redisClient == nil {
		return memory
	}

	primary := repository.NewRedisStateRepository(redisClient, cfg.Booking.SessionTTL)
	return repository.NewFailoverStateRepository(primary, memory, logger)
}

func subscribeEventLogging(bus *events.EventBus, logger *zerolog.Logger) {
	for _, eventType := range []string{events.EventBookingCreated, events.EventBookingConfirmed, events.EventBookingCancelled} {
		bus.Subscribe(eventType, func(event *events.Event) error {
			payload, err := events.DecodeBookingPayload(event)
			if err != nil {
				return err
			}
			logger.Info().
				Str("event", eventType).
				Str("booking_id", payload.BookingID).
				Str("status", payload.Status).
				Msg("Booking event")
			return nil
		})
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

func serve(ctx context.Context, server *api.Server, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info().Msg("API server stopped")
	return nil
}
