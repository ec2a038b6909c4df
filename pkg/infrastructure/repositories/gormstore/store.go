package gormstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
	"github.com/vsinha/mfgplan/pkg/domain/repositories"
)

const insertBatchSize = 200

// Store implements repositories.Store on GORM
type Store struct {
	db *gorm.DB
}

// New wraps an opened, migrated database
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle
func (s *Store) DB() *gorm.DB {
	return s.db
}

var _ repositories.Store = (*Store)(nil)

// Transaction runs fn inside a database transaction
func (s *Store) Transaction(ctx context.Context, fn func(tx repositories.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// Upsert inserts a slice of entity pointers. Rows colliding on
// conflictColumns (the primary key when none are given) are overwritten.
func (s *Store) Upsert(ctx context.Context, rows any, conflictColumns ...string) error {
	v := reflect.ValueOf(rows)
	if v.Kind() != reflect.Slice {
		return fmt.Errorf("upsert expects a slice, got %T", rows)
	}
	if v.Len() == 0 {
		return nil
	}
	onConflict := clause.OnConflict{UpdateAll: true}
	for _, c := range conflictColumns {
		onConflict.Columns = append(onConflict.Columns, clause.Column{Name: c})
	}
	err := s.db.WithContext(ctx).
		Clauses(onConflict).
		CreateInBatches(rows, insertBatchSize).Error
	if err != nil {
		return fmt.Errorf("failed to upsert %T: %w", rows, err)
	}
	return nil
}

// InsertMissing inserts rows that do not exist yet, ignoring collisions
func (s *Store) InsertMissing(ctx context.Context, rows any) error {
	v := reflect.ValueOf(rows)
	if v.Kind() != reflect.Slice {
		return fmt.Errorf("insert expects a slice, got %T", rows)
	}
	if v.Len() == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(rows, insertBatchSize).Error
	if err != nil {
		return fmt.Errorf("failed to insert %T: %w", rows, err)
	}
	return nil
}

// notFound maps gorm's missing-row error onto entities.ErrNotFound
func notFound(err error, kind, key string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", kind, key, entities.ErrNotFound)
	}
	return fmt.Errorf("failed to load %s %s: %w", kind, key, err)
}
