package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"mileage-logger/internal/pipeline"
)

// HandleCalculate handles POST /api/v1/calculate — runs the full distance
// pipeline over the current session
func (h *Handler) HandleCalculate(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.session.HomeAddress == "" {
		h.mu.Unlock()
		h.handleValidationError(w, "Set a home address before calculating")
		return
	}
	snapshot := *h.session
	h.mu.Unlock()

	log.Printf("[HTTP] POST /api/v1/calculate: trips=%d", len(snapshot.Trips))

	result, err := h.Calculator.Calculate(r.Context(), &snapshot)
	if err != nil {
		if _, ok := err.(*pipeline.ErrServiceUnreachable); ok {
			h.writeError(w, http.StatusServiceUnavailable, "SERVICE_UNREACHABLE",
				"Could not reach the address services; check your connection", nil)
			return
		}
		h.handleInternalError(w, err)
		return
	}

	h.mu.Lock()
	h.lastResult = result
	h.mu.Unlock()

	h.writeJSON(w, http.StatusOK, result)
}

// HandleOverrideLeg handles PUT /api/v1/legs/{index} — manual distance edit
// against the last calculation
func (h *Handler) HandleOverrideLeg(w http.ResponseWriter, r *http.Request) {
	idxStr := strings.TrimPrefix(r.URL.Path, "/api/v1/legs/")
	index, err := strconv.Atoi(idxStr)
	if err != nil {
		h.handleValidationError(w, "Invalid leg index")
		return
	}

	var req struct {
		DistanceKm float64 `json:"distance_km"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleValidationError(w, "Invalid request body")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.lastResult == nil {
		h.handleValidationError(w, "No calculation to edit")
		return
	}

	if err := pipeline.OverrideLegDistance(h.lastResult.Legs, index, req.DistanceKm, h.session.PricePerKm); err != nil {
		h.handleValidationError(w, err.Error())
		return
	}
	h.lastResult.TotalDistanceKm, h.lastResult.TotalReimbursement = pipeline.RecomputeTotals(h.lastResult.Legs)

	log.Printf("[HTTP] Leg distance overridden: index=%d distance_km=%.2f", index, req.DistanceKm)
	h.writeJSON(w, http.StatusOK, h.lastResult)
}
