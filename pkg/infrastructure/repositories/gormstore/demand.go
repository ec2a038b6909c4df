package gormstore

import (
	"context"
	"fmt"
	"time"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
)

func (s *Store) ListMakeDemands(ctx context.Context, from, to time.Time) ([]*entities.ProductMonthDemand, error) {
	var demands []*entities.ProductMonthDemand
	err := s.db.WithContext(ctx).
		Where("month_start >= ? AND month_start <= ?", entities.MonthStart(from), entities.MonthStart(to)).
		Order("month_start, product_id").
		Find(&demands).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list make demands: %w", err)
	}
	return demands, nil
}

func (s *Store) GetMakeDemand(ctx context.Context, productID string, month time.Time) (*entities.ProductMonthDemand, error) {
	var d entities.ProductMonthDemand
	err := s.db.WithContext(ctx).
		Where("product_id = ? AND month_start = ?", productID, entities.MonthStart(month)).
		First(&d).Error
	if err != nil {
		return nil, notFound(err, "make demand", productID+"@"+entities.MonthKey(month))
	}
	return &d, nil
}

func (s *Store) GetMakeOverride(ctx context.Context, productID string, month time.Time) (*entities.MakeQtyOverride, error) {
	var o entities.MakeQtyOverride
	err := s.db.WithContext(ctx).
		Where("product_id = ? AND month_start = ?", productID, entities.MonthStart(month)).
		First(&o).Error
	if err != nil {
		return nil, notFound(err, "make override", productID+"@"+entities.MonthKey(month))
	}
	return &o, nil
}

func (s *Store) ListForecasts(ctx context.Context, month time.Time) ([]*entities.SkuMonthForecast, error) {
	var forecasts []*entities.SkuMonthForecast
	err := s.db.WithContext(ctx).
		Where("month_start = ?", entities.MonthStart(month)).
		Order("sku_id").
		Find(&forecasts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list forecasts: %w", err)
	}
	return forecasts, nil
}
