package bom

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
	"github.com/vsinha/mfgplan/pkg/domain/repositories"
	"github.com/vsinha/mfgplan/pkg/domain/services"
	"github.com/vsinha/mfgplan/pkg/infrastructure/config"
)

const moduleName = "bom"

// Service resolves effective BOMs straight from storage
type Service struct {
	boms   repositories.BOMRepository
	items  repositories.ItemRepository
	logger *logrus.Logger
}

// NewService creates a BOM service
func NewService(boms repositories.BOMRepository, items repositories.ItemRepository, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Service{boms: boms, items: items, logger: logger}
}

// ResolveEffectiveBom composes a header with the SKU's overrides. When
// skuID is set and templateOrHeaderID is empty, the SKU's mapped template
// is used.
func (s *Service) ResolveEffectiveBom(ctx context.Context, templateOrHeaderID, skuID string) (*entities.EffectiveBOM, error) {
	headerID := templateOrHeaderID
	if headerID == "" {
		if skuID == "" {
			return nil, entities.NewValidationError("", fmt.Errorf("a header or a sku is required"))
		}
		pack, err := s.boms.GetPackMapping(ctx, skuID)
		if errors.Is(err, entities.ErrNotFound) {
			return nil, entities.NewValidationError(skuID, fmt.Errorf("%w: sku has no pack template", entities.ErrMissingBOM))
		}
		if err != nil {
			return nil, err
		}
		headerID = pack.TemplateID
	}

	header, err := s.boms.GetHeader(ctx, headerID)
	if errors.Is(err, entities.ErrNotFound) {
		return nil, entities.NewValidationError(headerID, fmt.Errorf("%w: header %s", entities.ErrMissingBOM, headerID))
	}
	if err != nil {
		return nil, err
	}
	lines, err := s.boms.GetLines(ctx, headerID)
	if err != nil {
		return nil, err
	}

	var overrides []*entities.BOMOverride
	if skuID != "" {
		if overrides, err = s.boms.ListOverrides(ctx, skuID, headerID); err != nil {
			return nil, err
		}
	}

	bom, err := services.ResolveBOM(header, lines, overrides)
	if err != nil {
		config.LogError(s.logger, moduleName, "ResolveEffectiveBom", "resolve", map[string]string{"header": headerID, "sku": skuID}, err)
		return nil, err
	}
	return bom, nil
}

// RequiredFor scales every line of an effective BOM to a target output
func RequiredFor(bom *entities.EffectiveBOM, target decimal.Decimal) []Requirement {
	out := make([]Requirement, 0, len(bom.Lines))
	input := bom.InputForOutput(target)
	for _, l := range bom.Lines {
		out = append(out, Requirement{
			StockItemID: l.StockItemID,
			Qty:         l.RequiredQty(input, bom.ReferenceOutputQty),
			UnitID:      l.UnitID,
			IsOptional:  l.IsOptional,
		})
	}
	return out
}

// Requirement is one line of an effective BOM scaled to a target output
type Requirement struct {
	StockItemID string          `json:"stock_item_id"`
	Qty         decimal.Decimal `json:"qty"`
	UnitID      string          `json:"unit_id"`
	IsOptional  bool            `json:"is_optional"`
}

// Check runs the structural graph checks over all stored BOMs
func (s *Service) Check(ctx context.Context) (*services.ValidationResult, error) {
	headers, err := s.boms.ListHeaders(ctx, "")
	if err != nil {
		return nil, err
	}
	var lines []*entities.BOMLine
	for _, h := range headers {
		hl, err := s.boms.GetLines(ctx, h.ID)
		if err != nil {
			return nil, err
		}
		lines = append(lines, hl...)
	}
	items, err := s.items.ListStockItems(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(items))
	for _, it := range items {
		known[it.ID] = true
	}

	result := services.NewBOMValidator().ValidateBOM(headers, lines, known)
	for _, msg := range result.Errors {
		config.LogWarning(s.logger, moduleName, "Check", "bom_graph", msg)
	}
	return result, nil
}
