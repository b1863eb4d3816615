package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"mileage-logger/internal/pipeline"
)

// settingsResponse is the settings payload. The API key is reported only as
// present or absent, never echoed back.
type settingsResponse struct {
	HomeAddress string  `json:"home_address"`
	PricePerKm  float64 `json:"price_per_km"`
	HasAPIKey   bool    `json:"has_api_key"`
}

// HandleGetSettings handles GET /api/v1/settings
func (h *Handler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	log.Printf("[HTTP] GET /api/v1/settings")

	apiKey, err := h.Sessions.APIKey(r.Context())
	if err != nil {
		h.handleInternalError(w, err)
		return
	}

	h.mu.Lock()
	resp := settingsResponse{
		HomeAddress: h.session.HomeAddress,
		PricePerKm:  h.session.PricePerKm,
		HasAPIKey:   apiKey != "",
	}
	h.mu.Unlock()

	h.writeJSON(w, http.StatusOK, resp)
}

// HandleUpdateSettings handles PUT /api/v1/settings
func (h *Handler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HomeAddress *string  `json:"home_address"`
		PricePerKm  *float64 `json:"price_per_km"`
		APIKey      *string  `json:"api_key"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[HTTP] PUT /api/v1/settings: invalid_body err=%v", err)
		h.handleValidationError(w, "Invalid request body")
		return
	}

	if req.PricePerKm != nil && *req.PricePerKm < 0 {
		h.handleValidationError(w, "Price per km must not be negative")
		return
	}

	if req.APIKey != nil {
		if err := h.Sessions.SetAPIKey(r.Context(), *req.APIKey); err != nil {
			h.handleInternalError(w, err)
			return
		}
		if h.Router != nil {
			h.Router.SetAPIKey(*req.APIKey)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if req.HomeAddress != nil {
		h.session.HomeAddress = *req.HomeAddress
	}

	if req.PricePerKm != nil && *req.PricePerKm != h.session.PricePerKm {
		h.session.PricePerKm = *req.PricePerKm
		// Any price change must immediately flow into dependent figures
		if h.lastResult != nil {
			pipeline.Reprice(h.lastResult.Legs, h.session.PricePerKm)
			h.lastResult.TotalDistanceKm, h.lastResult.TotalReimbursement = pipeline.RecomputeTotals(h.lastResult.Legs)
		}
	}

	if err := h.persist(r.Context()); err != nil {
		h.handleInternalError(w, err)
		return
	}

	apiKey, err := h.Sessions.APIKey(r.Context())
	if err != nil {
		h.handleInternalError(w, err)
		return
	}

	log.Printf("[HTTP] Updated settings: price_per_km=%.2f", h.session.PricePerKm)
	h.writeJSON(w, http.StatusOK, settingsResponse{
		HomeAddress: h.session.HomeAddress,
		PricePerKm:  h.session.PricePerKm,
		HasAPIKey:   apiKey != "",
	})
}
