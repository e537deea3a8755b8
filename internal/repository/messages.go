package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/easeaico/companion-engine/internal/types"
)

type messageModel struct {
	ID         int `gorm:"primaryKey;autoIncrement"`
	Content    string
	IsUser     bool
	CreatedAt  time.Time
	TokensUsed int
}

func (messageModel) TableName() string {
	return "messages"
}

// MessageRepo appends and reads chat history. Deliberately minimal: the
// engine only ever appends turns and reads recent windows.
type MessageRepo struct {
	db *gorm.DB
}

// NewMessageRepo returns a MessageRepo.
func NewMessageRepo(db *gorm.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func (r *MessageRepo) Append(ctx context.Context, msg types.ChatMessage) error {
	record := messageModel{
		Content:    msg.Content,
		IsUser:     msg.IsUser,
		CreatedAt:  msg.CreatedAt,
		TokensUsed: msg.TokensUsed,
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// Recent returns the last limit messages, oldest first.
func (r *MessageRepo) Recent(ctx context.Context, limit int) ([]types.ChatMessage, error) {
	var records []messageModel
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}

	results := make([]types.ChatMessage, 0, len(records))
	for _, record := range records {
		results = append(results, types.ChatMessage{
			ID:         record.ID,
			Content:    record.Content,
			IsUser:     record.IsUser,
			CreatedAt:  record.CreatedAt,
			TokensUsed: record.TokensUsed,
		})
	}

	// Oldest -> newest
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	return results, nil
}
