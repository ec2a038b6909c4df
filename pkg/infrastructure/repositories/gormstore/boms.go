package gormstore

import (
	"context"
	"fmt"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
)

func (s *Store) GetHeader(ctx context.Context, id string) (*entities.BOMHeader, error) {
	var h entities.BOMHeader
	if err := s.db.WithContext(ctx).First(&h, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "bom header", id)
	}
	return &h, nil
}

func (s *Store) FindHeaderByOwner(ctx context.Context, kind entities.BOMKind, ownerID string) (*entities.BOMHeader, error) {
	var h entities.BOMHeader
	err := s.db.WithContext(ctx).
		Where("kind = ? AND owner_id = ? AND is_template = ?", kind, ownerID, false).
		Order("last_updated_at DESC, id").
		First(&h).Error
	if err != nil {
		return nil, notFound(err, string(kind)+" bom for", ownerID)
	}
	return &h, nil
}

func (s *Store) ListHeaders(ctx context.Context, kind entities.BOMKind) ([]*entities.BOMHeader, error) {
	var headers []*entities.BOMHeader
	q := s.db.WithContext(ctx).Order("id")
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if err := q.Find(&headers).Error; err != nil {
		return nil, fmt.Errorf("failed to list bom headers: %w", err)
	}
	return headers, nil
}

func (s *Store) GetLines(ctx context.Context, headerID string) ([]*entities.BOMLine, error) {
	var lines []*entities.BOMLine
	if err := s.db.WithContext(ctx).Where("header_id = ?", headerID).Order("line_no").Find(&lines).Error; err != nil {
		return nil, fmt.Errorf("failed to load lines of %s: %w", headerID, err)
	}
	return lines, nil
}

func (s *Store) GetPackMapping(ctx context.Context, skuID string) (*entities.SkuPackMap, error) {
	var m entities.SkuPackMap
	if err := s.db.WithContext(ctx).First(&m, "sku_id = ?", skuID).Error; err != nil {
		return nil, notFound(err, "pack mapping", skuID)
	}
	return &m, nil
}

func (s *Store) ListPackMappings(ctx context.Context) ([]*entities.SkuPackMap, error) {
	var maps []*entities.SkuPackMap
	if err := s.db.WithContext(ctx).Order("sku_id").Find(&maps).Error; err != nil {
		return nil, fmt.Errorf("failed to list pack mappings: %w", err)
	}
	return maps, nil
}

func (s *Store) ListOverrides(ctx context.Context, skuID, templateID string) ([]*entities.BOMOverride, error) {
	var overrides []*entities.BOMOverride
	err := s.db.WithContext(ctx).
		Where("sku_id = ? AND template_id = ?", skuID, templateID).
		Order("seq, created_at, id").
		Find(&overrides).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load overrides of %s: %w", skuID, err)
	}
	return overrides, nil
}
