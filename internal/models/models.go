package models

import (
	"fmt"
	"math"
)

// Coordinates represents a geographic point (WGS84)
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks that the coordinates are within valid WGS84 bounds
func (c Coordinates) Validate() error {
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %f out of range [-90, 90]", c.Lat)
	}
	if c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("longitude %f out of range [-180, 180]", c.Lng)
	}
	return nil
}

// RoundCoordinate rounds a coordinate to 5 decimal places (~1m precision).
// Used for cache keys and same-point comparisons.
func RoundCoordinate(coord float64) float64 {
	return math.Round(coord*100000) / 100000
}

// SamePoint reports whether two coordinates are equal within cache-key precision
func SamePoint(a, b Coordinates) bool {
	return RoundCoordinate(a.Lat) == RoundCoordinate(b.Lat) &&
		RoundCoordinate(a.Lng) == RoundCoordinate(b.Lng)
}

// RoundMoney rounds a value to 2 decimal places
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// AddressCandidate is a single geocoding match for a free-text address.
// BestGuess is set when the match was obtained only after relaxing the
// original query. Candidates are transient and never persisted.
type AddressCandidate struct {
	DisplayName string      `json:"display_name"`
	Coords      Coordinates `json:"coords"`
	BestGuess   bool        `json:"best_guess"`
}

// Stop is a single visited address within a trip. Coords is nil until the
// address has been resolved.
type Stop struct {
	Address string       `json:"address"`
	Coords  *Coordinates `json:"coords,omitempty"`
}

// GetCoords returns the stop's coordinates and whether they are known
func (s *Stop) GetCoords() (Coordinates, bool) {
	if s.Coords == nil {
		return Coordinates{}, false
	}
	return *s.Coords, true
}

// Trip is a dense-numbered, ordered sequence of stops starting (and usually
// ending) at the home address
type Trip struct {
	Number      int    `json:"number"`
	Stops       []Stop `json:"stops"`
	ReturnsHome bool   `json:"returns_home"`
	Included    bool   `json:"included"`
}

// Leg is one directed segment of a calculated trip. Legs are rebuilt from
// scratch on every calculation run; the distance field may be manually
// overridden afterwards, which also clears Error.
type Leg struct {
	TripNumber    int          `json:"trip_number"`
	From          string       `json:"from"`
	To            string       `json:"to"`
	FromCoords    *Coordinates `json:"from_coords,omitempty"`
	ToCoords      *Coordinates `json:"to_coords,omitempty"`
	DistanceKm    float64      `json:"distance_km"`
	DurationMin   float64      `json:"duration_min"`
	Reimbursement float64      `json:"reimbursement"`
	UsedFallback  bool         `json:"used_fallback"`
	Error         string       `json:"error,omitempty"`
}

// Session holds the complete application state for the single user
type Session struct {
	HomeAddress  string  `json:"home_address"`
	Trips        []Trip  `json:"trips"`
	PendingStops []Stop  `json:"pending_stops"`
	PricePerKm   float64 `json:"price_per_km"`
}

// CalculationResult is the output of a full pipeline run
type CalculationResult struct {
	Legs               []Leg   `json:"legs"`
	TotalDistanceKm    float64 `json:"total_distance_km"`
	TotalReimbursement float64 `json:"total_reimbursement"`
}

// DistanceCacheEntry represents a cached driving-route lookup
type DistanceCacheEntry struct {
	Origin       Coordinates `json:"origin"`
	Destination  Coordinates `json:"destination"`
	DistanceKm   float64     `json:"distance_km"`
	DurationMin  float64     `json:"duration_min"`
	UsedFallback bool        `json:"used_fallback"`
}
