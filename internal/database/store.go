package database

import "context"

// Keys used by the session store. The core reads and writes exactly these.
const (
	KeyHomeAddress = "home_address"
	KeyTrips       = "trips"
	KeyPricePerKm  = "price_per_km"
	KeyAPIKey      = "ors_api_key"
)

// Store is a flat key/value persistence boundary. Get returns an empty
// string (not an error) for keys that were never set.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}
