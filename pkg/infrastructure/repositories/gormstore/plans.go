package gormstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
)

func batchesBySeq(db *gorm.DB) *gorm.DB {
	return db.Order("seq_no")
}

func (s *Store) CreatePlanHeader(ctx context.Context, header *entities.BatchPlanHeader) error {
	if err := s.db.WithContext(ctx).Create(header).Error; err != nil {
		return fmt.Errorf("failed to create plan header: %w", err)
	}
	return nil
}

func (s *Store) GetPlanHeader(ctx context.Context, id string) (*entities.BatchPlanHeader, error) {
	var h entities.BatchPlanHeader
	if err := s.db.WithContext(ctx).First(&h, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "plan header", id)
	}
	return &h, nil
}

func (s *Store) EffectiveRule(ctx context.Context, productID string, asOf time.Time) (*entities.BatchSizeRule, error) {
	var r entities.BatchSizeRule
	err := s.db.WithContext(ctx).
		Where("product_id = ? AND effective_from <= ?", productID, asOf).
		Order("effective_from DESC, id DESC").
		First(&r).Error
	if err != nil {
		return nil, notFound(err, "batch size rule", productID)
	}
	return &r, nil
}

func (s *Store) FindLine(ctx context.Context, headerID, productID string, month time.Time) (*entities.BatchPlanLine, error) {
	var l entities.BatchPlanLine
	err := s.db.WithContext(ctx).
		Preload("Batches", batchesBySeq).
		Where("header_id = ? AND product_id = ? AND month_start = ?", headerID, productID, entities.MonthStart(month)).
		First(&l).Error
	if err != nil {
		return nil, notFound(err, "plan line", headerID+"/"+productID+"@"+entities.MonthKey(month))
	}
	return &l, nil
}

func (s *Store) GetLine(ctx context.Context, id string) (*entities.BatchPlanLine, error) {
	var l entities.BatchPlanLine
	if err := s.db.WithContext(ctx).Preload("Batches", batchesBySeq).First(&l, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "plan line", id)
	}
	return &l, nil
}

// SaveLine inserts or updates the line row only; batches are written separately
func (s *Store) SaveLine(ctx context.Context, line *entities.BatchPlanLine) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(line).Error; err != nil {
		return fmt.Errorf("failed to save plan line: %w", err)
	}
	return nil
}

func (s *Store) ListLinesForMonth(ctx context.Context, month time.Time) ([]*entities.BatchPlanLine, error) {
	var lines []*entities.BatchPlanLine
	err := s.db.WithContext(ctx).
		Preload("Batches", batchesBySeq).
		Where("month_start = ?", entities.MonthStart(month)).
		Order("product_id, header_id").
		Find(&lines).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list plan lines: %w", err)
	}
	return lines, nil
}

func (s *Store) ListBatches(ctx context.Context, lineID string) ([]*entities.Batch, error) {
	var batches []*entities.Batch
	if err := s.db.WithContext(ctx).Where("line_id = ?", lineID).Order("seq_no").Find(&batches).Error; err != nil {
		return nil, fmt.Errorf("failed to list batches of %s: %w", lineID, err)
	}
	return batches, nil
}

func (s *Store) GetBatch(ctx context.Context, id string) (*entities.Batch, error) {
	var b entities.Batch
	if err := s.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "batch", id)
	}
	return &b, nil
}

func (s *Store) FindBatchByRecord(ctx context.Context, recordRef string) (*entities.Batch, error) {
	var b entities.Batch
	if err := s.db.WithContext(ctx).First(&b, "record_ref = ?", recordRef).Error; err != nil {
		return nil, notFound(err, "batch with record", recordRef)
	}
	return &b, nil
}

func (s *Store) ListLinkedBatches(ctx context.Context) ([]*entities.Batch, error) {
	var batches []*entities.Batch
	if err := s.db.WithContext(ctx).Where("record_ref IS NOT NULL").Order("record_ref").Find(&batches).Error; err != nil {
		return nil, fmt.Errorf("failed to list linked batches: %w", err)
	}
	return batches, nil
}

func (s *Store) InsertBatches(ctx context.Context, batches []*entities.Batch) error {
	if len(batches) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).CreateInBatches(batches, insertBatchSize).Error; err != nil {
		return fmt.Errorf("failed to insert batches: %w", err)
	}
	return nil
}

func (s *Store) UpdateBatch(ctx context.Context, batch *entities.Batch) error {
	if err := s.db.WithContext(ctx).Save(batch).Error; err != nil {
		return fmt.Errorf("failed to update batch %s: %w", batch.ID, err)
	}
	return nil
}

func (s *Store) DeleteBatches(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&entities.Batch{}).Error; err != nil {
		return fmt.Errorf("failed to delete batches: %w", err)
	}
	return nil
}
