package repositories

import (
	"context"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
)

// ItemRepository provides access to stock item, product and unit master data
type ItemRepository interface {
	GetStockItem(ctx context.Context, id string) (*entities.StockItem, error)
	ListStockItems(ctx context.Context) ([]*entities.StockItem, error)
	ListAliases(ctx context.Context) ([]*entities.StockItemAlias, error)
	GetProduct(ctx context.Context, id string) (*entities.Product, error)
	ListProducts(ctx context.Context) ([]*entities.Product, error)
	GetSKU(ctx context.Context, id string) (*entities.SKU, error)
	ListSKUs(ctx context.Context) ([]*entities.SKU, error)
	ListUnits(ctx context.Context) ([]*entities.Unit, error)
	ListConversions(ctx context.Context) ([]*entities.UomConversion, error)
}
