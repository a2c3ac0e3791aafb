package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"visado/internal/database"
	"visado/internal/payments"
	"visado/internal/service"
)

// maxBodySize bounds request bodies; webhook payloads are small.
const maxBodySize = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAvailabilityDates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"dates": s.availability.Dates(r.Context())})
}

func (s *Server) handleAvailabilityTimes(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}

	times, err := s.availability.Times(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "slots": times})
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req service.ReserveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	booking, slot, err := s.reservations.Reserve(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrSlotFull):
			writeError(w, http.StatusConflict, "the selected time is no longer available")
		case errors.Is(err, database.ErrSlotNotFound):
			writeError(w, http.StatusNotFound, "no slot at the selected date and time")
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"booking": booking,
		"slot": map[string]any{
			"date": slot.Date,
			"time": slot.TimeSlot,
		},
	})
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BookingID string `json:"bookingId"`
	}
	if err := decodeJSON(r, &req); err != nil || req.BookingID == "" {
		writeError(w, http.StatusBadRequest, "bookingId is required")
		return
	}

	session, err := s.reservations.Checkout(r.Context(), req.BookingID)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrBookingNotFound):
			writeError(w, http.StatusNotFound, "booking not found")
		case errors.Is(err, database.ErrNotPending):
			writeError(w, http.StatusConflict, "booking is not awaiting payment")
		default:
			s.logger.Error().Err(err).Str("booking_id", req.BookingID).Msg("Checkout failed")
			writeError(w, http.StatusBadGateway, "payment provider unavailable")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"sessionId": session.ID,
		"url":       session.URL,
	})
}

func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	event, err := s.verifier.VerifyWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			writeError(w, http.StatusBadRequest, "invalid signature")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	outcome, err := s.reconciler.Process(r.Context(), event)
	if err != nil {
		// Only transient storage failures surface here; non-2xx makes
		// the gateway redeliver later. Terminally unprocessable events
		// come back as an aborted outcome and are acknowledged below.
		s.logger.Error().Err(err).Str("payment_id", event.PaymentID).Msg("Webhook reconciliation failed")
		writeError(w, http.StatusInternalServerError, "reconciliation failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"received": "true", "outcome": outcome})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"sessionId"`
		Message   string `json:"message"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.chat.HandleMessage(r.Context(), req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, service.ErrChatRateLimited) {
			writeError(w, http.StatusTooManyRequests, "too many messages, slow down")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
