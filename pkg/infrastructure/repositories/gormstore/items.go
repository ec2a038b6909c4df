package gormstore

import (
	"context"
	"fmt"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
)

func (s *Store) GetStockItem(ctx context.Context, id string) (*entities.StockItem, error) {
	var item entities.StockItem
	if err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "stock item", id)
	}
	return &item, nil
}

func (s *Store) ListStockItems(ctx context.Context) ([]*entities.StockItem, error) {
	var items []*entities.StockItem
	if err := s.db.WithContext(ctx).Order("code").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list stock items: %w", err)
	}
	return items, nil
}

func (s *Store) ListAliases(ctx context.Context) ([]*entities.StockItemAlias, error) {
	var aliases []*entities.StockItemAlias
	if err := s.db.WithContext(ctx).Order("stock_item_id, alias").Find(&aliases).Error; err != nil {
		return nil, fmt.Errorf("failed to list aliases: %w", err)
	}
	return aliases, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*entities.Product, error) {
	var p entities.Product
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "product", id)
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]*entities.Product, error) {
	var products []*entities.Product
	if err := s.db.WithContext(ctx).Order("code").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (s *Store) GetSKU(ctx context.Context, id string) (*entities.SKU, error) {
	var sku entities.SKU
	if err := s.db.WithContext(ctx).First(&sku, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "sku", id)
	}
	return &sku, nil
}

func (s *Store) ListSKUs(ctx context.Context) ([]*entities.SKU, error) {
	var skus []*entities.SKU
	if err := s.db.WithContext(ctx).Order("code").Find(&skus).Error; err != nil {
		return nil, fmt.Errorf("failed to list skus: %w", err)
	}
	return skus, nil
}

func (s *Store) ListUnits(ctx context.Context) ([]*entities.Unit, error) {
	var units []*entities.Unit
	if err := s.db.WithContext(ctx).Order("id").Find(&units).Error; err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	return units, nil
}

func (s *Store) ListConversions(ctx context.Context) ([]*entities.UomConversion, error) {
	var conversions []*entities.UomConversion
	if err := s.db.WithContext(ctx).Order("from_unit_id, to_unit_id").Find(&conversions).Error; err != nil {
		return nil, fmt.Errorf("failed to list conversions: %w", err)
	}
	return conversions, nil
}
