package repository

import (
	"droneaid/internal/model"
)

// SampleRepository defines the catalog operations for generated samples.
type SampleRepository interface {
	// Create operations
	Insert(s *model.Sample) (int64, error)
	InsertBatch(samples []model.Sample) error

	// Read operations
	GetByFilename(filename string) (*model.Sample, error)
	ListByClass(class string) ([]model.Sample, error)
	CountBySplit() ([]model.SplitCount, error)
	GetTotalCount() (int, error)

	// Delete operations
	DeleteAll() error
}

// TileRepository defines the catalog operations for harvested tiles.
type TileRepository interface {
	Insert(t *model.Tile) (int64, error)
	GetAll() ([]model.Tile, error)
}
