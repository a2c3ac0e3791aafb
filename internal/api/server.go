package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"visado/internal/config"
	"visado/internal/metrics"
	"visado/internal/models"
	"visado/internal/service"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// The handler-facing service surfaces. The concrete implementations
// live in internal/service; tests substitute fakes.
type AvailabilityService interface {
	Dates(ctx context.Context) []models.DateAvailability
	Times(ctx context.Context, date string) ([]models.TimeSlotView, error)
}

type ReservationService interface {
	Reserve(ctx context.Context, req service.ReserveRequest) (*models.Booking, *models.Slot, error)
	Checkout(ctx context.Context, bookingID string) (*models.CheckoutSession, error)
	Cancel(ctx context.Context, bookingID string) (*models.Booking, error)
}

type WebhookVerifier interface {
	VerifyWebhook(payload []byte, sigHeader string) (*models.PaymentEvent, error)
}

type Reconciler interface {
	Process(ctx context.Context, event *models.PaymentEvent) (string, error)
}

type ChatService interface {
	HandleMessage(ctx context.Context, sessionID, message string) (*models.ChatResult, error)
}

type AdminService interface {
	GetConfig(ctx context.Context) (*models.AdminConfig, error)
	UpdateConfig(ctx context.Context, aiContext string, maxQuestions int) (*models.AdminConfig, error)
	ListBookings(ctx context.Context, status, date string) ([]*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id, status string) (*models.Booking, error)
	CreateSlot(ctx context.Context, req service.SlotRequest) (*models.Slot, error)
	DeleteSlot(ctx context.Context, id string) error
	ListSlots(ctx context.Context, from, to string) ([]*models.Slot, error)
	Dashboard(ctx context.Context) (*models.DashboardStats, error)
	ConnectCalendar(ctx context.Context, creds *models.CalendarCredentials) error
	DisconnectCalendar(ctx context.Context) error
	CalendarStatus(ctx context.Context) (*models.CalendarCredentials, error)
	ExportBookings(ctx context.Context, status string) (*excelize.File, error)
}

// Server is the public HTTP surface: booking flow, payment webhook,
// chat intake and the authenticated admin API.
type Server struct {
	cfg          config.ServerConfig
	availability AvailabilityService
	reservations ReservationService
	verifier     WebhookVerifier
	reconciler   Reconciler
	chat         ChatService
	admin        AdminService
	auth         *HTTPAuth
	logger       *zerolog.Logger
	server       *http.Server
}

type Deps struct {
	Availability AvailabilityService
	Reservations ReservationService
	Verifier     WebhookVerifier
	Reconciler   Reconciler
	Chat         ChatService
	Admin        AdminService
}

func NewServer(cfg config.ServerConfig, apiCfg config.APIConfig, deps Deps, logger *zerolog.Logger) *Server {
	s := &Server{
		cfg:          cfg,
		availability: deps.Availability,
		reservations: deps.Reservations,
		verifier:     deps.Verifier,
		reconciler:   deps.Reconciler,
		chat:         deps.Chat,
		admin:        deps.Admin,
		auth:         NewHTTPAuth(apiCfg),
		logger:       logger,
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

// Handler builds the full route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/v1/availability/dates", s.handleAvailabilityDates)
	mux.HandleFunc("GET /api/v1/availability", s.handleAvailabilityTimes)
	mux.HandleFunc("POST /api/v1/bookings", s.handleCreateBooking)
	mux.HandleFunc("POST /api/v1/checkout", s.handleCheckout)
	mux.HandleFunc("POST /api/v1/webhooks/payment", s.handlePaymentWebhook)
	mux.HandleFunc("POST /api/v1/chat", s.handleChat)

	admin := http.NewServeMux()
	admin.HandleFunc("GET /api/v1/admin/config", s.handleGetConfig)
	admin.HandleFunc("PUT /api/v1/admin/config", s.handleUpdateConfig)
	admin.HandleFunc("GET /api/v1/admin/bookings", s.handleListBookings)
	admin.HandleFunc("GET /api/v1/admin/bookings/export", s.handleExportBookings)
	admin.HandleFunc("PATCH /api/v1/admin/bookings/{id}", s.handleUpdateBooking)
	admin.HandleFunc("GET /api/v1/admin/slots", s.handleListSlots)
	admin.HandleFunc("POST /api/v1/admin/slots", s.handleCreateSlot)
	admin.HandleFunc("DELETE /api/v1/admin/slots/{id}", s.handleDeleteSlot)
	admin.HandleFunc("GET /api/v1/admin/dashboard", s.handleDashboard)
	admin.HandleFunc("GET /api/v1/admin/calendar", s.handleCalendarStatus)
	admin.HandleFunc("POST /api/v1/admin/calendar", s.handleConnectCalendar)
	admin.HandleFunc("DELETE /api/v1/admin/calendar", s.handleDisconnectCalendar)
	mux.Handle("/api/v1/admin/", s.auth.Wrap(admin))

	return s.loggingMiddleware(mux)
}

func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		metrics.IncHTTP(r.URL.Path)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
