package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/easeaico/companion-engine/internal/types"
)

// memoryModel maps to the memory_entries table.
type memoryModel struct {
	ID         int `gorm:"primaryKey;autoIncrement"`
	Content    string
	Timestamp  time.Time
	Importance float64
	// Embedding stores a vector representation for similarity search.
	Embedding *pgvector.Vector `gorm:"type:vector"`
}

func (memoryModel) TableName() string {
	return "memory_entries"
}

// MemoryRepo accesses the persistent memory store.
type MemoryRepo struct {
	db *gorm.DB
}

// NewMemoryRepo returns a MemoryRepo.
func NewMemoryRepo(db *gorm.DB) *MemoryRepo {
	return &MemoryRepo{db: db}
}

func (r *MemoryRepo) Add(ctx context.Context, entry types.MemoryEntry, embedding []float32) error {
	var vector *pgvector.Vector
	if len(embedding) > 0 {
		v := pgvector.NewVector(embedding)
		vector = &v
	}
	record := memoryModel{
		Content:    entry.Content,
		Timestamp:  entry.Timestamp,
		Importance: entry.Importance,
		Embedding:  vector,
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to insert memory: %w", err)
	}
	return nil
}

// Recent returns the last limit entries, oldest first.
func (r *MemoryRepo) Recent(ctx context.Context, limit int) ([]types.MemoryEntry, error) {
	var records []memoryModel
	if err := r.db.WithContext(ctx).
		Order("timestamp DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}

	results := make([]types.MemoryEntry, 0, len(records))
	for _, record := range records {
		results = append(results, memoryFromModel(record))
	}
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	return results, nil
}

// Count returns the total number of persisted entries.
func (r *MemoryRepo) Count(ctx context.Context) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&memoryModel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count memories: %w", err)
	}
	return int(count), nil
}

// DeleteOldest removes the n oldest entries.
func (r *MemoryRepo) DeleteOldest(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	sub := r.db.WithContext(ctx).
		Model(&memoryModel{}).
		Select("id").
		Order("timestamp ASC").
		Limit(n)
	if err := r.db.WithContext(ctx).
		Where("id IN (?)", sub).
		Delete(&memoryModel{}).Error; err != nil {
		return fmt.Errorf("failed to prune memories: %w", err)
	}
	return nil
}

// ExistsContent reports whether an entry with exactly this content exists.
func (r *MemoryRepo) ExistsContent(ctx context.Context, content string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&memoryModel{}).
		Where("content = ?", content).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check memory content: %w", err)
	}
	return count > 0, nil
}

// SearchSimilar runs a cosine-similarity search over embedded entries.
func (r *MemoryRepo) SearchSimilar(ctx context.Context, embedding []float32, topK int, threshold float64) ([]types.MemoryEntry, error) {
	if len(embedding) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, content, timestamp, importance
		FROM memory_entries
		WHERE embedding IS NOT NULL
		  AND 1 - (embedding <=> $1) > $2
		ORDER BY (0.85 * (1 - (embedding <=> $1)) + 0.15 * importance) DESC
		LIMIT $3`

	var results []types.MemoryEntry
	if err := r.db.WithContext(ctx).
		Raw(query, pgvector.NewVector(embedding), threshold, topK).
		Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to search similar memories: %w", err)
	}
	return results, nil
}

func memoryFromModel(record memoryModel) types.MemoryEntry {
	return types.MemoryEntry{
		ID:         record.ID,
		Content:    record.Content,
		Timestamp:  record.Timestamp,
		Importance: record.Importance,
	}
}
