package explosion

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vsinha/mfgplan/pkg/application/dto"
	"github.com/vsinha/mfgplan/pkg/domain/entities"
	"github.com/vsinha/mfgplan/pkg/domain/repositories"
	"github.com/vsinha/mfgplan/pkg/infrastructure/config"
	"github.com/vsinha/mfgplan/pkg/infrastructure/repositories/memory"
)

const moduleName = "explosion"

// Source is everything an explosion reads
type Source interface {
	repositories.ItemRepository
	repositories.BOMRepository
	repositories.PlanRepository
	repositories.DemandRepository
}

// Scope narrows an explosion. Empty fields select everything.
type Scope struct {
	Tiers   []entities.RootTier
	RootIDs []string
}

func (s Scope) includes(tier entities.RootTier, id string) bool {
	return contains(s.Tiers, tier) && contains(s.RootIDs, id)
}

func contains[T comparable](set []T, v T) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// Explosion is the in-memory result of exploding one month
type Explosion struct {
	Month    time.Time
	Roots    int
	Details  []*entities.RequirementDetail
	Totals   []entities.RequirementTotal
	Failures []dto.Failure
	Warnings []entities.DataQualityWarning
}

// Engine explodes a month's roots into leaf requirements
type Engine struct {
	source Source
	logger *logrus.Logger
}

// NewEngine creates an explosion engine reading from source
func NewEngine(source Source, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Engine{source: source, logger: logger}
}

// Explode computes gross requirements for month. Roots that fail are
// logged and reported; the remaining roots still explode.
func (e *Engine) Explode(ctx context.Context, month time.Time, scope Scope) (*Explosion, error) {
	month = entities.MonthStart(month)
	catalog, err := memory.LoadCatalog(ctx, e.source, e.source)
	if err != nil {
		return nil, err
	}

	result := &Explosion{
		Month:    month,
		Failures: make([]dto.Failure, 0),
		Warnings: make([]entities.DataQualityWarning, 0),
	}

	var roots []Root
	if contains(scope.Tiers, entities.TierRM) {
		rm, err := e.rmRoots(ctx, catalog, month, scope, result)
		if err != nil {
			return nil, err
		}
		roots = append(roots, rm...)
	}
	if contains(scope.Tiers, entities.TierPLM) {
		plm, err := e.plmRoots(ctx, catalog, month, scope, result)
		if err != nil {
			return nil, err
		}
		roots = append(roots, plm...)
	}

	traverser := NewBOMTraverser(catalog)
	visitor := NewDetailVisitor()
	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := traverser.TraverseRoot(ctx, root, visitor); err != nil {
			visitor.Discard()
			e.fail(result, root.Key(), err)
			continue
		}
		visitor.Commit()
		result.Roots++
	}

	result.Details = visitor.Details()
	result.Warnings = append(result.Warnings, traverser.Warnings()...)
	for _, w := range traverser.Warnings() {
		config.LogWarning(e.logger, moduleName, "Explode", w.Key, w.Message)
	}
	result.Totals = AggregateTotals(result.Details)
	return result, nil
}

// rmRoots returns the planned batch quantity of every product in the month.
// When several plan headers carry the same product-month the most recently
// updated line wins.
func (e *Engine) rmRoots(ctx context.Context, catalog *memory.Catalog, month time.Time, scope Scope, result *Explosion) ([]Root, error) {
	lines, err := e.source.ListLinesForMonth(ctx, month)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]*entities.BatchPlanLine)
	for _, line := range lines {
		if !scope.includes(entities.TierRM, line.ProductID) {
			continue
		}
		current, ok := latest[line.ProductID]
		if !ok {
			latest[line.ProductID] = line
			continue
		}
		result.Warnings = append(result.Warnings, entities.DataQualityWarning{
			Kind: entities.WarningDuplicatePlanLine,
			Key:  line.ProductID + "@" + entities.MonthKey(month),
			Message: fmt.Sprintf("product %s is planned by headers %s and %s; using the latest",
				line.ProductID, current.HeaderID, line.HeaderID),
		})
		if line.UpdatedAt.After(current.UpdatedAt) {
			latest[line.ProductID] = line
		}
	}

	productIDs := make([]string, 0, len(latest))
	for id := range latest {
		productIDs = append(productIDs, id)
	}
	sort.Strings(productIDs)

	roots := make([]Root, 0, len(productIDs))
	for _, productID := range productIDs {
		qty := decimal.Zero
		for _, b := range latest[productID].Batches {
			qty = qty.Add(b.Size)
		}
		if qty.IsZero() {
			continue
		}
		key := string(entities.TierRM) + ":" + productID

		product, ok := catalog.Product(productID)
		if !ok {
			e.fail(result, key, entities.NewValidationError(productID, fmt.Errorf("product: %w", entities.ErrNotFound)))
			continue
		}
		header, ok := catalog.OwnedHeader(entities.BOMKindRM, productID)
		if !ok {
			e.fail(result, key, entities.NewValidationError(productID, fmt.Errorf("%w: no RM BOM for product %s", entities.ErrMissingBOM, productID)))
			continue
		}
		bom, err := catalog.EffectiveBOM(header.ID, "")
		if err != nil {
			e.fail(result, key, err)
			continue
		}
		roots = append(roots, Root{Tier: entities.TierRM, ID: productID, Qty: qty, UnitID: product.UnitID, BOM: bom})
	}
	return roots, nil
}

// plmRoots returns the forecast units-to-fill of every SKU in the month
func (e *Engine) plmRoots(ctx context.Context, catalog *memory.Catalog, month time.Time, scope Scope, result *Explosion) ([]Root, error) {
	forecasts, err := e.source.ListForecasts(ctx, month)
	if err != nil {
		return nil, err
	}
	sort.Slice(forecasts, func(i, j int) bool { return forecasts[i].SkuID < forecasts[j].SkuID })

	roots := make([]Root, 0, len(forecasts))
	for _, f := range forecasts {
		if !scope.includes(entities.TierPLM, f.SkuID) || f.UnitsToFill.IsZero() {
			continue
		}
		key := string(entities.TierPLM) + ":" + f.SkuID

		sku, ok := catalog.SKU(f.SkuID)
		if !ok {
			e.fail(result, key, entities.NewValidationError(f.SkuID, fmt.Errorf("sku: %w", entities.ErrNotFound)))
			continue
		}
		templateID, ok := catalog.PackTemplate(sku.ID)
		if !ok {
			e.fail(result, key, entities.NewValidationError(sku.ID, fmt.Errorf("%w: sku %s has no pack mapping", entities.ErrMissingBOM, sku.ID)))
			continue
		}
		bom, err := catalog.EffectiveBOM(templateID, sku.ID)
		if err != nil {
			e.fail(result, key, err)
			continue
		}
		roots = append(roots, Root{Tier: entities.TierPLM, ID: sku.ID, Qty: f.UnitsToFill, UnitID: sku.UnitID, BOM: bom})
	}
	return roots, nil
}

func (e *Engine) fail(result *Explosion, key string, err error) {
	config.LogError(e.logger, moduleName, "Explode", "root", key, err)
	result.Failures = append(result.Failures, dto.NewFailure(key, err))
}
