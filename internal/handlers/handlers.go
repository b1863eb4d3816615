package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"mileage-logger/internal/database"
	"mileage-logger/internal/geocoding"
	"mileage-logger/internal/models"
	"mileage-logger/internal/pipeline"
	"mileage-logger/internal/routing"
)

// Handler provides common handler utilities and dependencies. It owns the
// single in-memory session, which is persisted after every mutation.
type Handler struct {
	Sessions   *database.SessionRepository
	Geocoder   geocoding.Geocoder
	Verifier   *geocoding.Verifier
	Calculator *pipeline.Calculator
	Router     *routing.ORSRouter // nil when routing is fully mocked

	mu         sync.Mutex
	session    *models.Session
	lastResult *models.CalculationResult
}

// LoadSession reads the persisted session into memory. Called once at startup.
func (h *Handler) LoadSession(ctx context.Context) error {
	session, err := h.Sessions.Load(ctx)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.session = session
	h.mu.Unlock()

	log.Printf("Session loaded: trips=%d pending_stops=%d", len(session.Trips), len(session.PendingStops))
	return nil
}

// persist writes the in-memory session back to the store. Callers must hold mu.
func (h *Handler) persist(ctx context.Context) error {
	return h.Sessions.Save(ctx, h.session)
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	h.writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// handleNotFound handles 404 errors
func (h *Handler) handleNotFound(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusNotFound, "NOT_FOUND", message, nil)
}

// handleValidationError handles 400 errors
func (h *Handler) handleValidationError(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

// handleGeocodingError handles 422 errors for geocoding failures
func (h *Handler) handleGeocodingError(w http.ResponseWriter, err error) {
	h.writeError(w, http.StatusUnprocessableEntity, "GEOCODING_FAILED", err.Error(), nil)
}

// handleInternalError handles 500 errors
func (h *Handler) handleInternalError(w http.ResponseWriter, err error) {
	log.Printf("[ERROR] Internal error: %v", err)
	h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", nil)
}

// HandleHealthCheck handles GET /api/v1/health
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
