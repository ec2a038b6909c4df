package repositories

import (
	"context"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
)

// BOMRepository provides access to Bill of Materials data
type BOMRepository interface {
	GetHeader(ctx context.Context, id string) (*entities.BOMHeader, error)
	// FindHeaderByOwner returns the non-template BOM of the given kind owned
	// by ownerID, or entities.ErrNotFound.
	FindHeaderByOwner(ctx context.Context, kind entities.BOMKind, ownerID string) (*entities.BOMHeader, error)
	ListHeaders(ctx context.Context, kind entities.BOMKind) ([]*entities.BOMHeader, error)
	// GetLines returns the header's lines ordered by line number.
	GetLines(ctx context.Context, headerID string) ([]*entities.BOMLine, error)
	GetPackMapping(ctx context.Context, skuID string) (*entities.SkuPackMap, error)
	ListPackMappings(ctx context.Context) ([]*entities.SkuPackMap, error)
	// ListOverrides returns a SKU's overrides of templateID in application order.
	ListOverrides(ctx context.Context, skuID, templateID string) ([]*entities.BOMOverride, error)
}
