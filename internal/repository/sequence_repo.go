package repository

import (
	"context"

	"gorm.io/gorm"
)

// SequenceRepository hands out monotonically increasing counters per key.
type SequenceRepository interface {
	Next(ctx context.Context, key string) (int64, error)
}

type sequenceRepository struct {
	db *gorm.DB
}

func NewSequenceRepository(db *gorm.DB) SequenceRepository {
	return &sequenceRepository{db: db}
}

// Next increments and returns the counter for key in a single statement.
// The row lock taken by the upsert serializes concurrent callers.
func (r *sequenceRepository) Next(ctx context.Context, key string) (int64, error) {
	var value int64
	err := GetDB(ctx, r.db).Raw(`
		INSERT INTO sequences (key, value, updated_at)
		VALUES (?, 1, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = sequences.value + 1, updated_at = NOW()
		RETURNING value`, key).Scan(&value).Error
	if err != nil {
		return 0, err
	}
	return value, nil
}
