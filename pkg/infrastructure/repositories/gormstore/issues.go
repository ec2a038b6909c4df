package gormstore

import (
	"context"
	"fmt"
	"time"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
)

func (s *Store) ListIssues(ctx context.Context, from, to time.Time) ([]*entities.IssueLine, error) {
	var lines []*entities.IssueLine
	err := s.db.WithContext(ctx).
		Where("issue_date >= ? AND issue_date < ?", from, to).
		Order("issue_date, id").
		Find(&lines).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list issue lines: %w", err)
	}
	return lines, nil
}

func (s *Store) GetIssue(ctx context.Context, id string) (*entities.IssueLine, error) {
	var l entities.IssueLine
	if err := s.db.WithContext(ctx).First(&l, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "issue line", id)
	}
	return &l, nil
}

// UpdateAllocation writes the resolved ids and allocation status of a line
func (s *Store) UpdateAllocation(ctx context.Context, line *entities.IssueLine) error {
	res := s.db.WithContext(ctx).
		Model(&entities.IssueLine{}).
		Where("id = ?", line.ID).
		Updates(map[string]any{
			"stock_item_id":     line.StockItemID,
			"product_id":        line.ProductID,
			"sku_id":            line.SkuID,
			"batch_id":          line.BatchID,
			"allocation_status": line.AllocationStatus,
			"allocation_note":   line.AllocationNote,
			"confirmed_by":      line.ConfirmedBy,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update allocation of %s: %w", line.ID, res.Error)
	}
	return nil
}
