package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"mileage-logger/internal/models"
	"mileage-logger/internal/trips"
)

// HandleGetSession handles GET /api/v1/session
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	session := *h.session
	h.mu.Unlock()

	h.writeJSON(w, http.StatusOK, session)
}

// HandleAddPendingStop handles POST /api/v1/session/stops
func (h *Handler) HandleAddPendingStop(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string              `json:"address"`
		Coords  *models.Coordinates `json:"coords,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleValidationError(w, "Invalid request body")
		return
	}

	req.Address = strings.TrimSpace(req.Address)
	if req.Address == "" {
		h.handleValidationError(w, "Address is required")
		return
	}

	if req.Coords != nil {
		if err := req.Coords.Validate(); err != nil {
			h.handleValidationError(w, err.Error())
			return
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	trips.AddPendingStop(h.session, models.Stop{Address: req.Address, Coords: req.Coords})
	if err := h.persist(r.Context()); err != nil {
		h.handleInternalError(w, err)
		return
	}

	log.Printf("[HTTP] Added pending stop: address=%s resolved=%v", req.Address, req.Coords != nil)
	h.writeJSON(w, http.StatusCreated, h.session.PendingStops)
}

// HandleRemovePendingStop handles DELETE /api/v1/session/stops/{index}
func (h *Handler) HandleRemovePendingStop(w http.ResponseWriter, r *http.Request) {
	idxStr := strings.TrimPrefix(r.URL.Path, "/api/v1/session/stops/")
	index, err := strconv.Atoi(idxStr)
	if err != nil {
		h.handleValidationError(w, "Invalid stop index")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := trips.RemovePendingStop(h.session, index); err != nil {
		h.handleNotFound(w, err.Error())
		return
	}
	if err := h.persist(r.Context()); err != nil {
		h.handleInternalError(w, err)
		return
	}

	log.Printf("[HTTP] Removed pending stop: index=%d", index)
	h.writeJSON(w, http.StatusOK, h.session.PendingStops)
}
