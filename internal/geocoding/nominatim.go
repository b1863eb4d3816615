package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"mileage-logger/internal/models"
)

// maxSearchResults caps how many candidates a single search may return
const maxSearchResults = 10

// Geocoder resolves free-text addresses into ranked candidate lists.
// An empty result list is not an error: it means the service ran and
// found nothing. Retry and query relaxation are the Verifier's job.
type Geocoder interface {
	Search(ctx context.Context, query string, limit int) ([]models.AddressCandidate, error)
}

// ErrSearchFailed is returned when the geocoding transport fails
type ErrSearchFailed struct {
	Query  string
	Reason string
}

func (e *ErrSearchFailed) Error() string {
	return fmt.Sprintf("address search failed for %q: %s", e.Query, e.Reason)
}

type nominatimGeocoder struct {
	baseURL     string
	countryCode string
	httpClient  *http.Client
	rateLimiter *time.Ticker
}

type nominatimResponse struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NewNominatimGeocoder creates a rate-limited Nominatim geocoder restricted
// to the given ISO country code (e.g. "ca")
func NewNominatimGeocoder(countryCode string) Geocoder {
	return &nominatimGeocoder{
		baseURL:     "https://nominatim.openstreetmap.org",
		countryCode: countryCode,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		rateLimiter: time.NewTicker(1 * time.Second),
	}
}

func (g *nominatimGeocoder) Search(ctx context.Context, query string, limit int) ([]models.AddressCandidate, error) {
	select {
	case <-g.rateLimiter.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if limit <= 0 || limit > maxSearchResults {
		limit = maxSearchResults
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", fmt.Sprintf("%d", limit))
	if g.countryCode != "" {
		params.Set("countrycodes", g.countryCode)
	}

	queryURL := fmt.Sprintf("%s/search?%s", g.baseURL, params.Encode())
	log.Printf("[GEOCODING] Search request: query=%s limit=%d", query, limit)

	req, err := http.NewRequestWithContext(ctx, "GET", queryURL, nil)
	if err != nil {
		log.Printf("[ERROR] Failed to create geocoding request: query=%s err=%v", query, err)
		return nil, &ErrSearchFailed{Query: query, Reason: err.Error()}
	}

	req.Header.Set("User-Agent", "MileageLogger/1.0")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		log.Printf("[ERROR] Geocoding API request failed: query=%s err=%v", query, err)
		return nil, &ErrSearchFailed{Query: query, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Printf("[ERROR] Geocoding API error: query=%s status=%d body=%s", query, resp.StatusCode, string(body))
		return nil, &ErrSearchFailed{
			Query:  query,
			Reason: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)),
		}
	}

	var results []nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		log.Printf("[ERROR] Failed to decode geocoding response: query=%s err=%v", query, err)
		return nil, &ErrSearchFailed{Query: query, Reason: err.Error()}
	}

	log.Printf("[GEOCODING] Search response: query=%s results_count=%d", query, len(results))

	// Dedupe by display name, first occurrence wins (the service returns
	// results in its own relevance order).
	seen := make(map[string]bool, len(results))
	candidates := make([]models.AddressCandidate, 0, len(results))
	for _, result := range results {
		if seen[result.DisplayName] {
			continue
		}

		var lat, lng float64
		if _, err := fmt.Sscanf(result.Lat, "%f", &lat); err != nil {
			log.Printf("[ERROR] Invalid latitude in geocoding response: query=%s lat=%s err=%v", query, result.Lat, err)
			continue
		}
		if _, err := fmt.Sscanf(result.Lon, "%f", &lng); err != nil {
			log.Printf("[ERROR] Invalid longitude in geocoding response: query=%s lng=%s err=%v", query, result.Lon, err)
			continue
		}

		coords := models.Coordinates{Lat: lat, Lng: lng}
		if err := coords.Validate(); err != nil {
			log.Printf("[ERROR] Out-of-range coordinates in geocoding response: query=%s err=%v", query, err)
			continue
		}

		seen[result.DisplayName] = true
		candidates = append(candidates, models.AddressCandidate{
			DisplayName: result.DisplayName,
			Coords:      coords,
		})

		if len(candidates) >= limit {
			break
		}
	}

	return candidates, nil
}
