package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"visado/internal/database"
	"visado/internal/models"
	"visado/internal/service"
)

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.admin.GetConfig(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load config")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AIContext    string `json:"aiContext"`
		MaxQuestions int    `json:"maxQuestions"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cfg, err := s.admin.UpdateConfig(r.Context(), req.AIContext, req.MaxQuestions)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	bookings, err := s.admin.ListBookings(r.Context(), status, date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *Server) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	f, err := s.admin.ExportBookings(r.Context(), status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filename := fmt.Sprintf("reservas-%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))
	if err := f.Write(w); err != nil {
		s.logger.Error().Err(err).Msg("Failed to stream export")
	}
}

func (s *Server) handleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	booking, err := s.admin.UpdateBookingStatus(r.Context(), id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrBookingNotFound):
			writeError(w, http.StatusNotFound, "booking not found")
		case errors.Is(err, service.ErrBadTransition):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *Server) handleListSlots(w http.ResponseWriter, r *http.Request) {
	from := strings.TrimSpace(r.URL.Query().Get("from"))
	to := strings.TrimSpace(r.URL.Query().Get("to"))
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "from and to are required")
		return
	}

	slots, err := s.admin.ListSlots(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

func (s *Server) handleCreateSlot(w http.ResponseWriter, r *http.Request) {
	var req service.SlotRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	slot, err := s.admin.CreateSlot(r.Context(), req)
	if err != nil {
		if errors.Is(err, database.ErrSlotTaken) {
			writeError(w, http.StatusConflict, "a slot already exists at that date and time")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, slot)
}

func (s *Server) handleDeleteSlot(w http.ResponseWriter, r *http.Request) {
	err := s.admin.DeleteSlot(r.Context(), r.PathValue("id"))
	if err != nil {
		switch {
		case errors.Is(err, database.ErrSlotNotFound):
			writeError(w, http.StatusNotFound, "slot not found")
		case errors.Is(err, database.ErrSlotInUse):
			writeError(w, http.StatusConflict, "slot has active bookings")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": "true"})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.admin.Dashboard(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to assemble dashboard")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCalendarStatus(w http.ResponseWriter, r *http.Request) {
	creds, err := s.admin.CalendarStatus(r.Context())
	if errors.Is(err, database.ErrCalendarNotConnected) {
		writeJSON(w, http.StatusOK, map[string]any{"connected": false})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load calendar status")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"connected":    true,
		"accountEmail": creds.AccountEmail,
		"calendarId":   creds.CalendarID,
	})
}

func (s *Server) handleConnectCalendar(w http.ResponseWriter, r *http.Request) {
	var creds models.CalendarCredentials
	if err := decodeJSON(r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.admin.ConnectCalendar(r.Context(), &creds); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"connected": "true"})
}

func (s *Server) handleDisconnectCalendar(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.DisconnectCalendar(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"connected": "false"})
}
