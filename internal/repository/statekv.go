package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// stateModel maps to the state_kv table: one JSON blob per engine-state key.
type stateModel struct {
	Key       string          `gorm:"primaryKey"`
	Value     json.RawMessage `gorm:"type:jsonb"`
	UpdatedAt time.Time
}

func (stateModel) TableName() string {
	return "state_kv"
}

// StateKVRepo stores engine-state snapshots. Writes are fire-and-forget from
// the pipeline's point of view but sequential per key, so the next read of a
// key observes its last write.
type StateKVRepo struct {
	db *gorm.DB
}

// NewStateKVRepo returns a StateKVRepo.
func NewStateKVRepo(db *gorm.DB) *StateKVRepo {
	return &StateKVRepo{db: db}
}

// Save marshals value and upserts it under key.
func (r *StateKVRepo) Save(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode state %q: %w", key, err)
	}
	record := stateModel{Key: key, Value: raw, UpdatedAt: time.Now()}
	if err := r.db.WithContext(ctx).Save(&record).Error; err != nil {
		return fmt.Errorf("failed to save state %q: %w", key, err)
	}
	return nil
}

// Load unmarshals the stored blob into target. Returns false when the key
// has never been written.
func (r *StateKVRepo) Load(ctx context.Context, key string, target any) (bool, error) {
	var record stateModel
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load state %q: %w", key, err)
	}
	if err := json.Unmarshal(record.Value, target); err != nil {
		return false, fmt.Errorf("failed to decode state %q: %w", key, err)
	}
	return true, nil
}
