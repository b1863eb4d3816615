package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"mileage-logger/internal/trips"
)

// HandleAddTrip handles POST /api/v1/trips — finalizes the pending stops
// into a new trip
func (h *Handler) HandleAddTrip(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReturnsHome bool `json:"returns_home"`
	}
	if r.Body != nil {
		// Body is optional; an empty one means returns_home=false
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	trip, err := trips.AddTrip(h.session, req.ReturnsHome)
	if err != nil {
		if errors.Is(err, trips.ErrNoPendingStops) {
			h.handleValidationError(w, "Add at least one stop before creating a trip")
			return
		}
		h.handleInternalError(w, err)
		return
	}

	if err := h.persist(r.Context()); err != nil {
		h.handleInternalError(w, err)
		return
	}

	log.Printf("[HTTP] Created trip: number=%d stops=%d returns_home=%v", trip.Number, len(trip.Stops), trip.ReturnsHome)
	h.writeJSON(w, http.StatusCreated, trip)
}

// tripNumber extracts the trailing trip number from the request path
func tripNumber(r *http.Request) (int, error) {
	numStr := strings.TrimPrefix(r.URL.Path, "/api/v1/trips/")
	return strconv.Atoi(numStr)
}

// HandleRemoveTrip handles DELETE /api/v1/trips/{number}
func (h *Handler) HandleRemoveTrip(w http.ResponseWriter, r *http.Request) {
	number, err := tripNumber(r)
	if err != nil {
		h.handleValidationError(w, "Invalid trip number")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := trips.RemoveTrip(h.session, number); err != nil {
		h.handleNotFound(w, err.Error())
		return
	}
	if err := h.persist(r.Context()); err != nil {
		h.handleInternalError(w, err)
		return
	}

	log.Printf("[HTTP] Removed trip: number=%d remaining=%d", number, len(h.session.Trips))
	h.writeJSON(w, http.StatusOK, h.session.Trips)
}

// HandleUpdateTrip handles PUT /api/v1/trips/{number} — include/return-home
// toggles and stop reordering
func (h *Handler) HandleUpdateTrip(w http.ResponseWriter, r *http.Request) {
	number, err := tripNumber(r)
	if err != nil {
		h.handleValidationError(w, "Invalid trip number")
		return
	}

	var req struct {
		Included    *bool `json:"included"`
		ReturnsHome *bool `json:"returns_home"`
		MoveStop    *struct {
			From int `json:"from"`
			To   int `json:"to"`
		} `json:"move_stop"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleValidationError(w, "Invalid request body")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if req.Included != nil {
		if err := trips.SetIncluded(h.session, number, *req.Included); err != nil {
			h.handleNotFound(w, err.Error())
			return
		}
	}
	if req.ReturnsHome != nil {
		if err := trips.SetReturnsHome(h.session, number, *req.ReturnsHome); err != nil {
			h.handleNotFound(w, err.Error())
			return
		}
	}
	if req.MoveStop != nil {
		if err := trips.MoveStop(h.session, number, req.MoveStop.From, req.MoveStop.To); err != nil {
			h.handleValidationError(w, err.Error())
			return
		}
	}

	if err := h.persist(r.Context()); err != nil {
		h.handleInternalError(w, err)
		return
	}

	trip := trips.FindTrip(h.session, number)
	if trip == nil {
		h.handleNotFound(w, "Trip not found")
		return
	}

	log.Printf("[HTTP] Updated trip: number=%d included=%v returns_home=%v", trip.Number, trip.Included, trip.ReturnsHome)
	h.writeJSON(w, http.StatusOK, trip)
}
