package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"mileage-logger/internal/models"

	_ "modernc.org/sqlite"
)

// DistanceCache is a SQLite-backed implementation of
// database.DistanceCacheRepository
type DistanceCache struct {
	db *sql.DB
}

// NewDistanceCache opens (creating if necessary) a SQLite distance cache at
// the given path
func NewDistanceCache(dbPath string) (*DistanceCache, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	log.Printf("Opening distance cache at: %s", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	cache := &DistanceCache{db: db}
	if err := cache.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	return cache, nil
}

func (c *DistanceCache) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS distance_cache (
			origin_lat REAL NOT NULL,
			origin_lng REAL NOT NULL,
			dest_lat REAL NOT NULL,
			dest_lng REAL NOT NULL,
			distance_km REAL NOT NULL,
			duration_min REAL NOT NULL,
			used_fallback INTEGER NOT NULL DEFAULT 0,
			cached_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (origin_lat, origin_lng, dest_lat, dest_lng)
		)
	`
	_, err := c.db.Exec(schema)
	return err
}

func (c *DistanceCache) Get(ctx context.Context, origin, dest models.Coordinates) (*models.DistanceCacheEntry, error) {
	query := `SELECT origin_lat, origin_lng, dest_lat, dest_lng, distance_km, duration_min, used_fallback
	          FROM distance_cache
	          WHERE origin_lat = ? AND origin_lng = ? AND dest_lat = ? AND dest_lng = ?`

	var entry models.DistanceCacheEntry
	err := c.db.QueryRowContext(ctx, query,
		models.RoundCoordinate(origin.Lat), models.RoundCoordinate(origin.Lng),
		models.RoundCoordinate(dest.Lat), models.RoundCoordinate(dest.Lng),
	).Scan(
		&entry.Origin.Lat, &entry.Origin.Lng,
		&entry.Destination.Lat, &entry.Destination.Lng,
		&entry.DistanceKm, &entry.DurationMin, &entry.UsedFallback,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get distance cache entry: %w", err)
	}

	return &entry, nil
}

func (c *DistanceCache) Set(ctx context.Context, entry *models.DistanceCacheEntry) error {
	query := `INSERT OR REPLACE INTO distance_cache
	          (origin_lat, origin_lng, dest_lat, dest_lng, distance_km, duration_min, used_fallback)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := c.db.ExecContext(ctx, query,
		models.RoundCoordinate(entry.Origin.Lat), models.RoundCoordinate(entry.Origin.Lng),
		models.RoundCoordinate(entry.Destination.Lat), models.RoundCoordinate(entry.Destination.Lng),
		entry.DistanceKm, entry.DurationMin, entry.UsedFallback,
	)
	if err != nil {
		return fmt.Errorf("failed to set distance cache entry: %w", err)
	}

	return nil
}

func (c *DistanceCache) Clear(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM distance_cache`); err != nil {
		return fmt.Errorf("failed to clear distance cache: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (c *DistanceCache) Close() error {
	return c.db.Close()
}
