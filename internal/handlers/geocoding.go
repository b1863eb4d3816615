package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"mileage-logger/internal/geocoding"
	"mileage-logger/internal/models"
)

// HandleAddressSearch handles GET /api/v1/address-search — live suggestions
// while the user types
func (h *Handler) HandleAddressSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("address")
	log.Printf("[HTTP] GET /api/v1/address-search: query=%s", query)

	if len(query) < 4 {
		h.writeJSON(w, http.StatusOK, []models.AddressCandidate{})
		return
	}

	results, err := h.Geocoder.Search(r.Context(), query, 5)
	if err != nil {
		log.Printf("[ERROR] Failed to search addresses: query=%s err=%v", query, err)
		h.writeJSON(w, http.StatusOK, []models.AddressCandidate{})
		return
	}

	h.writeJSON(w, http.StatusOK, results)
}

// verifyResponse reports verification results plus user-facing warnings for
// the offending input field
type verifyResponse struct {
	Candidates   []models.AddressCandidate `json:"candidates"`
	TriedQueries []string                  `json:"tried_queries"`
	Warnings     []string                  `json:"warnings,omitempty"`
}

// HandleVerifyAddress handles POST /api/v1/verify-address — the full
// relaxation chain
func (h *Handler) HandleVerifyAddress(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleValidationError(w, "Invalid request body")
		return
	}

	result, err := h.Verifier.Verify(r.Context(), req.Address)
	if err != nil {
		if errors.Is(err, geocoding.ErrEmptyAddress) {
			h.handleValidationError(w, "Address is required")
			return
		}
		log.Printf("[ERROR] Address verification failed: address=%s err=%v", req.Address, err)
		h.handleGeocodingError(w, err)
		return
	}

	resp := verifyResponse{
		Candidates:   result.Candidates,
		TriedQueries: result.TriedQueries,
	}
	if len(result.Candidates) == 0 {
		resp.Warnings = append(resp.Warnings, "No matches found for this address, even after relaxing the search")
	} else if result.Candidates[0].BestGuess {
		resp.Warnings = append(resp.Warnings, "No exact match found; showing best guesses")
	}

	log.Printf("[HTTP] POST /api/v1/verify-address: address=%s candidates=%d tried=%d",
		req.Address, len(result.Candidates), len(result.TriedQueries))
	h.writeJSON(w, http.StatusOK, resp)
}
