package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"mileage-logger/internal/models"
)

// SessionRepository persists the single application session over a flat
// key/value store. The session is loaded once at startup and saved after
// every mutation.
type SessionRepository struct {
	store Store
}

// NewSessionRepository creates a session repository over the given store
func NewSessionRepository(store Store) *SessionRepository {
	return &SessionRepository{store: store}
}

// sessionTrips is the serialized shape of the trips key. Pending stops ride
// along with the trip list so an unfinished trip survives a restart.
type sessionTrips struct {
	Trips        []models.Trip `json:"trips"`
	PendingStops []models.Stop `json:"pending_stops"`
}

// Load reads the session from the store, defaulting missing keys
func (r *SessionRepository) Load(ctx context.Context) (*models.Session, error) {
	session := &models.Session{
		Trips:        []models.Trip{},
		PendingStops: []models.Stop{},
	}

	home, err := r.store.Get(ctx, KeyHomeAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to load home address: %w", err)
	}
	session.HomeAddress = home

	price, err := r.store.Get(ctx, KeyPricePerKm)
	if err != nil {
		return nil, fmt.Errorf("failed to load price per km: %w", err)
	}
	if price != "" {
		v, err := strconv.ParseFloat(price, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid stored price per km %q: %w", price, err)
		}
		session.PricePerKm = v
	}

	trips, err := r.store.Get(ctx, KeyTrips)
	if err != nil {
		return nil, fmt.Errorf("failed to load trips: %w", err)
	}
	if trips != "" {
		var decoded sessionTrips
		if err := json.Unmarshal([]byte(trips), &decoded); err != nil {
			return nil, fmt.Errorf("failed to parse stored trips: %w", err)
		}
		if decoded.Trips != nil {
			session.Trips = decoded.Trips
		}
		if decoded.PendingStops != nil {
			session.PendingStops = decoded.PendingStops
		}
	}

	return session, nil
}

// Save writes the full session back to the store
func (r *SessionRepository) Save(ctx context.Context, session *models.Session) error {
	if err := r.store.Set(ctx, KeyHomeAddress, session.HomeAddress); err != nil {
		return fmt.Errorf("failed to save home address: %w", err)
	}

	if err := r.store.Set(ctx, KeyPricePerKm, strconv.FormatFloat(session.PricePerKm, 'f', -1, 64)); err != nil {
		return fmt.Errorf("failed to save price per km: %w", err)
	}

	encoded, err := json.Marshal(sessionTrips{
		Trips:        session.Trips,
		PendingStops: session.PendingStops,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal trips: %w", err)
	}

	if err := r.store.Set(ctx, KeyTrips, string(encoded)); err != nil {
		return fmt.Errorf("failed to save trips: %w", err)
	}

	return nil
}

// APIKey returns the stored directions-service credential
func (r *SessionRepository) APIKey(ctx context.Context) (string, error) {
	return r.store.Get(ctx, KeyAPIKey)
}

// SetAPIKey stores the directions-service credential
func (r *SessionRepository) SetAPIKey(ctx context.Context, key string) error {
	return r.store.Set(ctx, KeyAPIKey, key)
}
