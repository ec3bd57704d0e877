package sqlite

import (
	"fmt"
	"time"

	"droneaid/internal/model"
)

// TileRepository implements repository.TileRepository for SQLite.
type TileRepository struct {
	db *DB
}

// NewTileRepository creates a new SQLite tile repository.
func NewTileRepository(db *DB) *TileRepository {
	return &TileRepository{db: db}
}

// Insert adds a harvested tile record.
func (r *TileRepository) Insert(t *model.Tile) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	fetched := t.FetchedAt
	if fetched.IsZero() {
		fetched = time.Now()
	}

	result, err := r.db.Conn().Exec(`
		INSERT INTO tiles (filename, center_lat, center_lon, min_lon, min_lat, max_lon, max_lat, width, height, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.Filename, t.CenterLat, t.CenterLon, t.MinLon, t.MinLat, t.MaxLon, t.MaxLat, t.Width, t.Height, fetched)
	if err != nil {
		return 0, fmt.Errorf("failed to insert tile: %w", err)
	}

	return result.LastInsertId()
}

// GetAll returns every tile, newest first.
func (r *TileRepository) GetAll() ([]model.Tile, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, filename, center_lat, center_lon, min_lon, min_lat, max_lon, max_lat, width, height, fetched_at
		FROM tiles ORDER BY fetched_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tiles: %w", err)
	}
	defer rows.Close()

	var tiles []model.Tile
	for rows.Next() {
		var t model.Tile
		if err := rows.Scan(&t.ID, &t.Filename, &t.CenterLat, &t.CenterLon, &t.MinLon, &t.MinLat,
			&t.MaxLon, &t.MaxLat, &t.Width, &t.Height, &t.FetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tile: %w", err)
		}
		tiles = append(tiles, t)
	}

	return tiles, rows.Err()
}
