// Package repository persists engine state in PostgreSQL via gorm.
package repository

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Store holds the DB pool and repositories.
type Store struct {
	db       *gorm.DB
	Facts    *FactRepo
	Messages *MessageRepo
	Memories *MemoryRepo
	StateKV  *StateKVRepo
}

// NewStore initializes the PostgreSQL pool and repositories. The fact-table
// migration runs here, before any other write can happen.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{
		db:       db,
		Facts:    NewFactRepo(db),
		Messages: NewMessageRepo(db),
		Memories: NewMemoryRepo(db),
		StateKV:  NewStateKVRepo(db),
	}

	if err := store.Facts.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("fact migration failed: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&messageModel{}, &memoryModel{}, &stateModel{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}
	return store, nil
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Close() {
	if s.db == nil {
		return
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return
	}
	_ = sqlDB.Close()
}
