package database

import (
	"context"
	"fmt"

	"mileage-logger/internal/models"
)

// DistanceCacheRepository handles persistent caching of routed distances,
// keyed by 5-decimal rounded coordinate pairs
type DistanceCacheRepository interface {
	Get(ctx context.Context, origin, dest models.Coordinates) (*models.DistanceCacheEntry, error)
	Set(ctx context.Context, entry *models.DistanceCacheEntry) error
	Clear(ctx context.Context) error
}

// MakeCacheKey builds the canonical cache key for a coordinate pair
func MakeCacheKey(origin, dest models.Coordinates) string {
	return fmt.Sprintf("%.5f,%.5f->%.5f,%.5f",
		models.RoundCoordinate(origin.Lat),
		models.RoundCoordinate(origin.Lng),
		models.RoundCoordinate(dest.Lat),
		models.RoundCoordinate(dest.Lng),
	)
}
