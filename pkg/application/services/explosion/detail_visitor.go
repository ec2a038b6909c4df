package explosion

import (
	"context"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
)

// DetailVisitor turns leaves into requirement detail rows. Rows are
// buffered per root and only committed when the root completes, so a
// failing root contributes nothing.
type DetailVisitor struct {
	details []*entities.RequirementDetail
	pending []*entities.RequirementDetail
	nextSeq int
}

// NewDetailVisitor creates a visitor numbering rows from 1
func NewDetailVisitor() *DetailVisitor {
	return &DetailVisitor{nextSeq: 1}
}

// VisitLeaf buffers one detail row with its full lineage
func (v *DetailVisitor) VisitLeaf(ctx context.Context, root Root, leaf Leaf) error {
	lineage := make([]entities.LineageStep, 0, len(leaf.Steps)+1)
	lineage = append(lineage, entities.LineageStep{Level: 0, ItemID: root.ID, Multiplier: root.Qty})
	for i, step := range leaf.Steps {
		step.Level = i + 1
		lineage = append(lineage, step)
	}

	v.pending = append(v.pending, &entities.RequirementDetail{
		RootTier:         root.Tier,
		RootID:           root.ID,
		StockItemID:      leaf.Item.ID,
		MaterialKind:     leaf.Item.MaterialKind,
		GrossRequiredQty: entities.LineageProduct(lineage),
		UnitID:           leaf.Item.DefaultUnitID,
		IsOptional:       leaf.Optional,
		Lineage:          lineage,
	})
	return nil
}

// Commit keeps the buffered rows of the current root
func (v *DetailVisitor) Commit() {
	for _, d := range v.pending {
		d.Seq = v.nextSeq
		v.nextSeq++
		v.details = append(v.details, d)
	}
	v.pending = v.pending[:0]
}

// Discard drops the buffered rows of the current root
func (v *DetailVisitor) Discard() {
	v.pending = v.pending[:0]
}

// Details returns the committed rows in visit order
func (v *DetailVisitor) Details() []*entities.RequirementDetail {
	return v.details
}
