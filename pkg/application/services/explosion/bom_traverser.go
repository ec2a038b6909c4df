package explosion

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
	"github.com/vsinha/mfgplan/pkg/infrastructure/repositories/memory"
)

// Root is a level-0 node of an explosion: a product's planned batch
// quantity or a SKU's forecast units-to-fill
type Root struct {
	Tier   entities.RootTier
	ID     string
	Qty    decimal.Decimal
	UnitID string
	BOM    *entities.EffectiveBOM
}

// Key identifies the root in logs and failure summaries
func (r Root) Key() string {
	return string(r.Tier) + ":" + r.ID
}

// Leaf is a non-SP stock item reached from a root, with the edges that led
// to it. Multipliers of Steps are per one unit of the root.
type Leaf struct {
	Item     *entities.StockItem
	Optional bool
	Steps    []entities.LineageStep
}

// LeafVisitor receives every leaf of a successfully exploded root
type LeafVisitor interface {
	VisitLeaf(ctx context.Context, root Root, leaf Leaf) error
}

// unitLeaf is a leaf below one unit of an SP item
type unitLeaf struct {
	itemID   string
	optional bool
	steps    []entities.LineageStep
}

// BOMTraverser walks effective BOMs from the catalog. The explosion of one
// unit of every SP item is computed once and reused; an item met again
// while its own explosion is in progress is a cycle.
type BOMTraverser struct {
	catalog  *memory.Catalog
	memo     map[string][]unitLeaf
	onStack  map[string]bool
	path     []string
	warnings []entities.DataQualityWarning
	warned   map[string]bool
}

// NewBOMTraverser creates a traverser over a catalog snapshot. It is not
// safe for concurrent use.
func NewBOMTraverser(catalog *memory.Catalog) *BOMTraverser {
	return &BOMTraverser{
		catalog: catalog,
		memo:    make(map[string][]unitLeaf),
		onStack: make(map[string]bool),
		warned:  make(map[string]bool),
	}
}

// Warnings returns the data quality findings met so far, once each
func (bt *BOMTraverser) Warnings() []entities.DataQualityWarning {
	return bt.warnings
}

// TraverseRoot explodes a root down to its leaves and hands each one to
// visitor. Nothing is visited when any part of the root fails.
func (bt *BOMTraverser) TraverseRoot(ctx context.Context, root Root, visitor LeafVisitor) error {
	edges, err := bt.explodeBOM(root.BOM, root.ID, root.UnitID)
	if err != nil {
		return err
	}
	for _, leaf := range edges {
		item, _ := bt.catalog.StockItem(leaf.itemID)
		if err := visitor.VisitLeaf(ctx, root, Leaf{Item: item, Optional: leaf.optional, Steps: leaf.steps}); err != nil {
			return err
		}
	}
	return nil
}

// explodeBOM expands one unit (in unitID) of the BOM's owner into leaves
func (bt *BOMTraverser) explodeBOM(bom *entities.EffectiveBOM, ownerID, unitID string) ([]unitLeaf, error) {
	converter := bt.catalog.Converter()
	toRef, err := converter.Factor(unitID, bom.ReferenceOutputUnitID)
	if err != nil {
		return nil, err
	}

	var leaves []unitLeaf
	for _, line := range bom.Lines {
		child, ok := bt.catalog.StockItem(line.StockItemID)
		if !ok {
			bt.warn(entities.WarningUnmappedStockItem, bom.HeaderID+"/"+line.StockItemID,
				fmt.Sprintf("bom %s line %d references unknown stock item %s", bom.HeaderID, line.LineNo, line.StockItemID))
			continue
		}
		toChild, err := converter.Factor(line.UnitID, child.DefaultUnitID)
		if err != nil {
			return nil, err
		}
		edge := entities.LineageStep{
			ParentItemID: ownerID,
			ItemID:       child.ID,
			Multiplier:   toRef.Mul(bom.LineFactor(line)).Mul(toChild),
		}

		spHeader, isSP := bt.catalog.OwnedHeader(entities.BOMKindSP, child.ID)
		if !isSP {
			leaves = append(leaves, unitLeaf{itemID: child.ID, optional: line.IsOptional, steps: []entities.LineageStep{edge}})
			continue
		}

		below, err := bt.explodeSP(child, spHeader.ID)
		if err != nil {
			return nil, err
		}
		for _, b := range below {
			steps := make([]entities.LineageStep, 0, len(b.steps)+1)
			steps = append(steps, edge)
			steps = append(steps, b.steps...)
			leaves = append(leaves, unitLeaf{itemID: b.itemID, optional: line.IsOptional || b.optional, steps: steps})
		}
	}
	return leaves, nil
}

// explodeSP returns the memoized leaves below one default unit of an SP item
func (bt *BOMTraverser) explodeSP(item *entities.StockItem, headerID string) ([]unitLeaf, error) {
	if leaves, ok := bt.memo[item.ID]; ok {
		return leaves, nil
	}
	if bt.onStack[item.ID] {
		cycle := append(append([]string{}, bt.path...), item.ID)
		return nil, entities.NewConsistencyError(item.ID,
			fmt.Errorf("%w: %s", entities.ErrBomCycleDetected, strings.Join(cycle, " -> ")))
	}

	bt.onStack[item.ID] = true
	bt.path = append(bt.path, item.ID)
	defer func() {
		delete(bt.onStack, item.ID)
		bt.path = bt.path[:len(bt.path)-1]
	}()

	bom, err := bt.catalog.EffectiveBOM(headerID, "")
	if err != nil {
		return nil, err
	}
	leaves, err := bt.explodeBOM(bom, item.ID, item.DefaultUnitID)
	if err != nil {
		return nil, err
	}
	bt.memo[item.ID] = leaves
	return leaves, nil
}

func (bt *BOMTraverser) warn(kind entities.WarningKind, key, message string) {
	id := string(kind) + "|" + key
	if bt.warned[id] {
		return
	}
	bt.warned[id] = true
	bt.warnings = append(bt.warnings, entities.DataQualityWarning{Kind: kind, Key: key, Message: message})
}
