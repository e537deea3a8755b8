package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/easeaico/companion-engine/internal/types"
)

// factModel maps to the facts table. Key is canonical and primary.
type factModel struct {
	Key        string `gorm:"primaryKey"`
	Value      string
	Source     string
	Confidence float64
	UpdatedAt  time.Time
	Status     string
}

func (factModel) TableName() string {
	return "facts"
}

// FactRepo accesses the facts table.
type FactRepo struct {
	db *gorm.DB
}

// NewFactRepo returns a FactRepo.
func NewFactRepo(db *gorm.DB) *FactRepo {
	return &FactRepo{db: db}
}

// Migrate creates the facts table and normalizes rows written before the
// status column existed. Must complete before any other write; NewStore
// enforces that ordering.
func (r *FactRepo) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&factModel{}); err != nil {
		return fmt.Errorf("failed to migrate facts table: %w", err)
	}
	// Legacy rows carry an empty status; they become active entries.
	if err := r.db.WithContext(ctx).
		Model(&factModel{}).
		Where("status IS NULL OR status = ?", "").
		Update("status", string(types.FactStatusActive)).Error; err != nil {
		return fmt.Errorf("failed to normalize fact status: %w", err)
	}
	return nil
}

// Get returns the fact for a canonical key, or nil when absent.
func (r *FactRepo) Get(ctx context.Context, key string) (*types.FactEntry, error) {
	var record factModel
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fact: %w", err)
	}
	entry := factFromModel(record)
	return &entry, nil
}

// Upsert writes a fact row, replacing any existing row for the key.
func (r *FactRepo) Upsert(ctx context.Context, entry types.FactEntry) error {
	record := factModel{
		Key:        entry.Key,
		Value:      entry.Value,
		Source:     string(entry.Source),
		Confidence: entry.Confidence,
		UpdatedAt:  entry.UpdatedAt,
		Status:     string(entry.Status),
	}
	if err := r.db.WithContext(ctx).Save(&record).Error; err != nil {
		return fmt.Errorf("failed to upsert fact: %w", err)
	}
	return nil
}

// ListActive returns all non-rejected facts ordered by key.
func (r *FactRepo) ListActive(ctx context.Context) ([]types.FactEntry, error) {
	var records []factModel
	if err := r.db.WithContext(ctx).
		Where("status <> ?", string(types.FactStatusRejected)).
		Order("key ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list facts: %w", err)
	}

	results := make([]types.FactEntry, 0, len(records))
	for _, record := range records {
		results = append(results, factFromModel(record))
	}
	return results, nil
}

func factFromModel(record factModel) types.FactEntry {
	return types.FactEntry{
		Key:        record.Key,
		Value:      record.Value,
		Source:     types.FactSource(record.Source),
		Confidence: record.Confidence,
		UpdatedAt:  record.UpdatedAt,
		Status:     types.FactStatus(record.Status),
	}
}
