package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"time"

	"mileage-logger/internal/database"
	"mileage-logger/internal/models"
)

// snapRadiiM is the coordinate-snapping search radius ladder, in meters.
// Each endpoint climbs the ladder independently.
var snapRadiiM = []float64{350, 1000, 2000}

// RouteResult contains a driving distance and duration between two points.
// UsedFallback is set when no drivable route was found and the straight-line
// substitute was used instead.
type RouteResult struct {
	DistanceKm   float64 `json:"distance_km"`
	DurationMin  float64 `json:"duration_min"`
	UsedFallback bool    `json:"used_fallback"`
}

// Router resolves two coordinate pairs into a driving distance and duration.
// A result is always returned, degrading to straight-line distance, except
// when the directions service is entirely unreachable on the first attempt.
type Router interface {
	Route(ctx context.Context, origin, dest models.Coordinates) (*RouteResult, error)
}

// ErrRoutingUnavailable is returned when the directions service could not be
// reached at all (as opposed to being unable to route a specific pair)
type ErrRoutingUnavailable struct {
	Reason string
}

func (e *ErrRoutingUnavailable) Error() string {
	return fmt.Sprintf("directions service unreachable: %s", e.Reason)
}

// errNoSnap is an internal marker for the service's "could not find routable
// point within radius of coordinate N" failure
type errNoSnap struct {
	Waypoint int
	Message  string
}

func (e *errNoSnap) Error() string { return e.Message }

// ORSRouter is the OpenRouteService implementation of Router
type ORSRouter struct {
	baseURL    string
	profile    string
	httpClient *http.Client
	cache      database.DistanceCacheRepository

	mu     sync.RWMutex
	apiKey string
}

// NewORSRouter creates an OpenRouteService driving router. The cache is
// optional; pass nil to disable persistent caching.
func NewORSRouter(apiKey string, cache database.DistanceCacheRepository) *ORSRouter {
	return &ORSRouter{
		baseURL: "https://api.openrouteservice.org",
		profile: "driving-car",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache:  cache,
		apiKey: apiKey,
	}
}

// SetAPIKey replaces the service credential; safe to call while routing
func (r *ORSRouter) SetAPIKey(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apiKey = key
}

func (r *ORSRouter) getAPIKey() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.apiKey
}

type orsDirectionsRequest struct {
	Coordinates [][]float64 `json:"coordinates"`
	Radiuses    []float64   `json:"radiuses"`
}

type orsDirectionsResponse struct {
	Routes []struct {
		Summary struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"summary"`
	} `json:"routes"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// orsPointNotFoundCode is the service's "could not find routable point
// within radius" error code
const orsPointNotFoundCode = 2010

var snapCoordinateRe = regexp.MustCompile(`coordinate (\d+)`)

func (r *ORSRouter) Route(ctx context.Context, origin, dest models.Coordinates) (*RouteResult, error) {
	// Same point to same point is always zero; keeps the degenerate
	// home-to-home leg off the network
	if models.SamePoint(origin, dest) {
		return &RouteResult{DistanceKm: 0, DurationMin: 0}, nil
	}

	if r.cache != nil {
		cached, err := r.cache.Get(ctx, origin, dest)
		if err != nil {
			log.Printf("[ERROR] Distance cache read failed: err=%v", err)
		} else if cached != nil {
			return &RouteResult{
				DistanceKm:   cached.DistanceKm,
				DurationMin:  cached.DurationMin,
				UsedFallback: cached.UsedFallback,
			}, nil
		}
	}

	radiusIdx := [2]int{0, 0}
	attempt := 0

	for {
		attempt++
		radii := []float64{snapRadiiM[radiusIdx[0]], snapRadiiM[radiusIdx[1]]}

		result, err := r.requestRoute(ctx, origin, dest, radii)
		if err == nil {
			if r.cache != nil && !result.UsedFallback {
				entry := &models.DistanceCacheEntry{
					Origin:      origin,
					Destination: dest,
					DistanceKm:  result.DistanceKm,
					DurationMin: result.DurationMin,
				}
				if cerr := r.cache.Set(ctx, entry); cerr != nil {
					log.Printf("[ERROR] Distance cache write failed: err=%v", cerr)
				}
			}
			return result, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if snap, ok := err.(*errNoSnap); ok {
			// Enlarge the radius for the failing endpoint only
			if snap.Waypoint >= 0 && snap.Waypoint < 2 && radiusIdx[snap.Waypoint] < len(snapRadiiM)-1 {
				radiusIdx[snap.Waypoint]++
				log.Printf("[ORS] Snap retry: waypoint=%d radius=%.0fm", snap.Waypoint, snapRadiiM[radiusIdx[snap.Waypoint]])
				continue
			}
			log.Printf("[ORS] Snap radii exhausted, using straight-line fallback: origin=(%.5f,%.5f) dest=(%.5f,%.5f)",
				origin.Lat, origin.Lng, dest.Lat, dest.Lng)
			return fallbackResult(origin, dest), nil
		}

		if _, ok := err.(*ErrRoutingUnavailable); ok {
			// The very first connectivity failure means the service is
			// entirely unreachable and must surface to the caller
			if attempt == 1 {
				log.Printf("[ERROR] Directions service unreachable: err=%v", err)
				return nil, err
			}
			log.Printf("[ERROR] Transport failure mid-retry, using straight-line fallback: err=%v", err)
			return fallbackResult(origin, dest), nil
		}

		// Any other service-level failure (no route, malformed response)
		log.Printf("[ORS] Routing failed, using straight-line fallback: err=%v", err)
		return fallbackResult(origin, dest), nil
	}
}

// requestRoute performs one directions request with the given per-endpoint
// snap radii
func (r *ORSRouter) requestRoute(ctx context.Context, origin, dest models.Coordinates, radii []float64) (*RouteResult, error) {
	reqBody := orsDirectionsRequest{
		Coordinates: [][]float64{
			{origin.Lng, origin.Lat},
			{dest.Lng, dest.Lat},
		},
		Radiuses: radii,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal directions request: %w", err)
	}

	queryURL := fmt.Sprintf("%s/v2/directions/%s", r.baseURL, r.profile)
	req, err := http.NewRequestWithContext(ctx, "POST", queryURL, bytes.NewReader(payload))
	if err != nil {
		return nil, &ErrRoutingUnavailable{Reason: err.Error()}
	}

	req.Header.Set("Authorization", r.getAPIKey())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, &ErrRoutingUnavailable{Reason: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ErrRoutingUnavailable{Reason: err.Error()}
	}

	var decoded orsDirectionsResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode directions response (HTTP %d): %w", resp.StatusCode, err)
	}

	if decoded.Error != nil {
		if decoded.Error.Code == orsPointNotFoundCode {
			waypoint := parseSnapWaypoint(decoded.Error.Message)
			return nil, &errNoSnap{Waypoint: waypoint, Message: decoded.Error.Message}
		}
		return nil, fmt.Errorf("directions service error %d: %s", decoded.Error.Code, decoded.Error.Message)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directions service HTTP %d: %s", resp.StatusCode, string(body))
	}

	if len(decoded.Routes) == 0 {
		return nil, fmt.Errorf("directions response contains no route")
	}

	summary := decoded.Routes[0].Summary
	return &RouteResult{
		DistanceKm:  models.RoundMoney(normalizeDistanceKm(summary.Distance)),
		DurationMin: models.RoundMoney(summary.Duration / 60),
	}, nil
}

// parseSnapWaypoint extracts the failing endpoint index from the error
// payload; -1 when the message does not identify one
func parseSnapWaypoint(message string) int {
	m := snapCoordinateRe.FindStringSubmatch(message)
	if m == nil {
		return -1
	}
	idx, err := strconv.Atoi(m[1])
	if err != nil {
		return -1
	}
	return idx
}

// normalizeDistanceKm converts a service distance to kilometers. Values over
// 1000 are taken to be meters; the service does not carry a unit field.
func normalizeDistanceKm(distance float64) float64 {
	if distance > 1000 {
		return distance / 1000
	}
	return distance
}
