package repositories

import (
	"context"
	"time"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
)

// DemandRepository provides the externally computed demand inputs
type DemandRepository interface {
	ListMakeDemands(ctx context.Context, from, to time.Time) ([]*entities.ProductMonthDemand, error)
	GetMakeDemand(ctx context.Context, productID string, month time.Time) (*entities.ProductMonthDemand, error)
	GetMakeOverride(ctx context.Context, productID string, month time.Time) (*entities.MakeQtyOverride, error)
	ListForecasts(ctx context.Context, month time.Time) ([]*entities.SkuMonthForecast, error)
}
