package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/vogiaan1904/ticketbottle-registration/internal/service"
	"github.com/vogiaan1904/ticketbottle-registration/pkg/logger"
)

type RegisterRequest struct {
	UserID        string `json:"user_id" validate:"required"`
	AttendeeCount int    `json:"attendee_count" validate:"required,min=1"`
	Notes         string `json:"notes" validate:"max=1000"`
}

type HTTPHandler struct {
	registrationService service.RegistrationService
	logger              logger.Logger
	validator           *validator.Validate
}

func NewHTTPHandler(registrationService service.RegistrationService, logger logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		registrationService: registrationService,
		logger:              logger,
		validator:           validator.New(),
	}
}

func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(h.requestLogger)

	r.Get("/healthz", h.HealthCheck)
	r.Route("/api/v1/events/{eventId}", func(r chi.Router) {
		r.Post("/registrations", h.Register)
		r.Delete("/registrations/{userId}", h.Cancel)
		r.Post("/registrations/{userId}/confirm", h.Confirm)
		r.Get("/stats", h.Stats)
	})

	return r
}

// HealthCheck handles health check requests
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"service": "registration-service",
	}
	h.respondJSON(w, http.StatusOK, response)
}

// Register handles signup requests; a full event yields a waitlisted
// response, not an error status.
func (h *HTTPHandler) Register(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	if eventID == "" {
		h.respondError(w, http.StatusBadRequest, "Event ID is required", nil)
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	res, err := h.registrationService.Register(r.Context(), service.RegisterInput{
		EventID:       eventID,
		UserID:        req.UserID,
		AttendeeCount: req.AttendeeCount,
		Notes:         req.Notes,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEventNotFound):
			h.respondError(w, http.StatusNotFound, "Event not found", err)
		case errors.Is(err, service.ErrEventClosed):
			h.respondError(w, http.StatusConflict, "Event is closed for registration", err)
		case errors.Is(err, service.ErrAlreadyRegistered):
			h.respondError(w, http.StatusConflict, "You already have an active registration for this event", err)
		case errors.Is(err, service.ErrAlreadyWaitlisted):
			h.respondError(w, http.StatusConflict, "You are already on the waitlist for this event", err)
		case errors.Is(err, service.ErrInvalidAttendeeCount):
			h.respondError(w, http.StatusBadRequest, "Attendee count must be at least 1", err)
		default:
			h.logger.Errorf(r.Context(), "Failed to register: %v", err)
			h.respondError(w, http.StatusInternalServerError, "Failed to register", err)
		}
		return
	}

	h.respondJSON(w, http.StatusCreated, res)
}

// Cancel handles registration cancellation requests
func (h *HTTPHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	userID := chi.URLParam(r, "userId")
	if eventID == "" || userID == "" {
		h.respondError(w, http.StatusBadRequest, "Event ID and user ID are required", nil)
		return
	}

	reg, err := h.registrationService.Cancel(r.Context(), eventID, userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEventNotFound):
			h.respondError(w, http.StatusNotFound, "Event not found", err)
		case errors.Is(err, service.ErrRegistrationNotFound):
			h.respondError(w, http.StatusNotFound, "Registration not found", err)
		case errors.Is(err, service.ErrAlreadyCancelled):
			h.respondError(w, http.StatusConflict, "Registration is already cancelled", err)
		default:
			h.logger.Errorf(r.Context(), "Failed to cancel registration: %v", err)
			h.respondError(w, http.StatusInternalServerError, "Failed to cancel registration", err)
		}
		return
	}

	h.respondJSON(w, http.StatusOK, reg)
}

// Confirm handles pending-to-confirmed transitions
func (h *HTTPHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	userID := chi.URLParam(r, "userId")
	if eventID == "" || userID == "" {
		h.respondError(w, http.StatusBadRequest, "Event ID and user ID are required", nil)
		return
	}

	reg, err := h.registrationService.Confirm(r.Context(), eventID, userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEventNotFound):
			h.respondError(w, http.StatusNotFound, "Event not found", err)
		case errors.Is(err, service.ErrRegistrationNotFound):
			h.respondError(w, http.StatusNotFound, "Registration not found", err)
		default:
			h.logger.Errorf(r.Context(), "Failed to confirm registration: %v", err)
			h.respondError(w, http.StatusInternalServerError, "Failed to confirm registration", err)
		}
		return
	}

	h.respondJSON(w, http.StatusOK, reg)
}

// Stats handles dashboard aggregate requests
func (h *HTTPHandler) Stats(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	if eventID == "" {
		h.respondError(w, http.StatusBadRequest, "Event ID is required", nil)
		return
	}

	stats, err := h.registrationService.Stats(r.Context(), eventID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEventNotFound):
			h.respondError(w, http.StatusNotFound, "Event not found", err)
		default:
			h.logger.Errorf(r.Context(), "Failed to get event stats: %v", err)
			h.respondError(w, http.StatusInternalServerError, "Failed to get event stats", err)
		}
		return
	}

	h.respondJSON(w, http.StatusOK, stats)
}

// requestLogger logs one line per request with status and duration.
func (h *HTTPHandler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(ww, r)

		h.logger.Infof(r.Context(), "HTTP %s %s status=%d duration_ms=%d",
			r.Method, r.URL.Path, ww.statusCode, time.Since(start).Milliseconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.statusCode = code
	sw.ResponseWriter.WriteHeader(code)
}

// Helper functions

func (h *HTTPHandler) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Errorf(context.Background(), "Failed to encode JSON response: %v", err)
	}
}

func (h *HTTPHandler) respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	response := map[string]interface{}{
		"error": message,
		"code":  statusCode,
	}

	if err != nil {
		h.logger.Debugf(context.Background(), "Error response: %s: %v", message, err)
	}

	h.respondJSON(w, statusCode, response)
}
