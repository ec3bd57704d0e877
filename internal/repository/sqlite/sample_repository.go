package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"droneaid/internal/model"
)

// SampleRepository implements repository.SampleRepository for SQLite.
type SampleRepository struct {
	db *DB
}

// NewSampleRepository creates a new SQLite sample repository.
func NewSampleRepository(db *DB) *SampleRepository {
	return &SampleRepository{db: db}
}

const insertSampleSQL = `
	INSERT INTO samples (filename, class, class_index, split, center_x, center_y, width, height,
		canvas_width, canvas_height, background, effects, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(filename) DO UPDATE SET
		class = excluded.class,
		class_index = excluded.class_index,
		split = excluded.split,
		center_x = excluded.center_x,
		center_y = excluded.center_y,
		width = excluded.width,
		height = excluded.height,
		canvas_width = excluded.canvas_width,
		canvas_height = excluded.canvas_height,
		background = excluded.background,
		effects = excluded.effects,
		created_at = excluded.created_at
`

// Insert adds a sample, replacing an earlier record with the same filename
// (re-running the generator overwrites files in place).
func (r *SampleRepository) Insert(s *model.Sample) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(insertSampleSQL, sampleArgs(s)...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert sample: %w", err)
	}

	return result.LastInsertId()
}

// InsertBatch adds multiple samples in a single transaction.
func (r *SampleRepository) InsertBatch(samples []model.Sample) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertSampleSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range samples {
		if _, err := stmt.Exec(sampleArgs(&samples[i])...); err != nil {
			return fmt.Errorf("failed to insert sample %s: %w", samples[i].Filename, err)
		}
	}

	return tx.Commit()
}

func sampleArgs(s *model.Sample) []interface{} {
	created := s.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return []interface{}{
		s.Filename, s.Class, s.ClassIndex, s.Split,
		s.CenterX, s.CenterY, s.Width, s.Height,
		s.CanvasWidth, s.CanvasHeight, s.Background, s.Effects, created,
	}
}

const selectSampleSQL = `
	SELECT id, filename, class, class_index, split, center_x, center_y, width, height,
		canvas_width, canvas_height, background, effects, created_at
	FROM samples`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSample(row scanner) (*model.Sample, error) {
	var s model.Sample
	err := row.Scan(&s.ID, &s.Filename, &s.Class, &s.ClassIndex, &s.Split,
		&s.CenterX, &s.CenterY, &s.Width, &s.Height,
		&s.CanvasWidth, &s.CanvasHeight, &s.Background, &s.Effects, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByFilename retrieves a sample by its image filename, nil if absent.
func (r *SampleRepository) GetByFilename(filename string) (*model.Sample, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	s, err := scanSample(r.db.Conn().QueryRow(selectSampleSQL+` WHERE filename = ?`, filename))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sample: %w", err)
	}
	return s, nil
}

// ListByClass returns the samples of one class ordered by filename.
func (r *SampleRepository) ListByClass(class string) ([]model.Sample, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(selectSampleSQL+` WHERE class = ? ORDER BY filename`, class)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []model.Sample
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, *s)
	}

	return samples, rows.Err()
}

// CountBySplit returns per-class, per-split totals.
func (r *SampleRepository) CountBySplit() ([]model.SplitCount, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT class, split, COUNT(*) FROM samples
		GROUP BY class, split ORDER BY class_index, split
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count samples: %w", err)
	}
	defer rows.Close()

	var counts []model.SplitCount
	for rows.Next() {
		var c model.SplitCount
		if err := rows.Scan(&c.Class, &c.Split, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts = append(counts, c)
	}

	return counts, rows.Err()
}

// GetTotalCount returns the number of catalogued samples.
func (r *SampleRepository) GetTotalCount() (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM samples`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count samples: %w", err)
	}
	return count, nil
}

// DeleteAll removes every sample record.
func (r *SampleRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM samples`); err != nil {
		return fmt.Errorf("failed to delete samples: %w", err)
	}
	return nil
}
