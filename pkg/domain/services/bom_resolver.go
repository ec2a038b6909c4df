package services

import (
	"fmt"
	"sort"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
)

// ResolveBOM composes the effective BOM of a header (template or not) and
// an ordered set of overrides. Inputs are not modified.
func ResolveBOM(
	header *entities.BOMHeader,
	lines []*entities.BOMLine,
	overrides []*entities.BOMOverride,
) (*entities.EffectiveBOM, error) {
	if header == nil {
		return nil, entities.NewValidationError("", fmt.Errorf("bom header is nil"))
	}
	if err := header.Validate(); err != nil {
		return nil, entities.NewValidationError(header.ID, err)
	}

	sorted := make([]*entities.BOMLine, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].LineNo < sorted[j].LineNo })

	effective := make(map[string]*entities.EffectiveLine, len(sorted))
	nextLineNo := 1
	for _, l := range sorted {
		if _, exists := effective[l.StockItemID]; exists {
			return nil, entities.NewConsistencyError(
				header.ID,
				fmt.Errorf("%w: %s appears twice in template", entities.ErrDuplicateLine, l.StockItemID),
			)
		}
		effective[l.StockItemID] = &entities.EffectiveLine{
			LineNo:          l.LineNo,
			StockItemID:     l.StockItemID,
			QtyPerReference: l.QtyPerReference,
			UnitID:          l.UnitID,
			WastagePct:      l.WastagePct,
			IsOptional:      l.IsOptional,
		}
		if l.LineNo >= nextLineNo {
			nextLineNo = l.LineNo + 1
		}
	}

	for _, o := range orderOverrides(overrides) {
		if err := applyOverride(effective, &nextLineNo, o); err != nil {
			return nil, err
		}
	}

	result := &entities.EffectiveBOM{
		HeaderID:              header.ID,
		Kind:                  header.Kind,
		OwnerID:               header.OwnerID,
		ReferenceOutputQty:    header.ReferenceOutputQty,
		ReferenceOutputUnitID: header.ReferenceOutputUnitID,
		ProcessLossPct:        header.ProcessLossPct,
		Lines:                 make([]entities.EffectiveLine, 0, len(effective)),
	}
	for _, l := range effective {
		result.Lines = append(result.Lines, *l)
	}
	sort.Slice(result.Lines, func(i, j int) bool { return result.Lines[i].LineNo < result.Lines[j].LineNo })
	return result, nil
}

// orderOverrides sorts by (Seq, CreatedAt, ID), i.e. creation order
func orderOverrides(overrides []*entities.BOMOverride) []*entities.BOMOverride {
	ordered := make([]*entities.BOMOverride, len(overrides))
	copy(ordered, overrides)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Seq != b.Seq {
			return a.Seq < b.Seq
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return ordered
}

// applyOverride applies one ADD / REPLACE / REMOVE delta.
// ADD fails on an existing key; REPLACE requires one.
func applyOverride(effective map[string]*entities.EffectiveLine, nextLineNo *int, o *entities.BOMOverride) error {
	key := o.SkuID + ":" + o.StockItemID
	if o.StockItemID == "" {
		return entities.NewValidationError(key, fmt.Errorf("%w: empty stock item", entities.ErrMalformedOverride))
	}

	switch o.Op {
	case entities.OverrideAdd:
		if _, exists := effective[o.StockItemID]; exists {
			return entities.NewConsistencyError(key, fmt.Errorf("%w: ADD of %s", entities.ErrDuplicateLine, o.StockItemID))
		}
		if o.Qty == nil || !o.Qty.IsPositive() || o.UnitID == nil || *o.UnitID == "" {
			return entities.NewValidationError(key, fmt.Errorf("%w: ADD needs a positive quantity and a unit", entities.ErrMalformedOverride))
		}
		line := &entities.EffectiveLine{
			LineNo:          *nextLineNo,
			StockItemID:     o.StockItemID,
			QtyPerReference: *o.Qty,
			UnitID:          *o.UnitID,
			Origin:          entities.OverrideAdd,
		}
		if o.WastagePct != nil {
			if o.WastagePct.IsNegative() {
				return entities.NewValidationError(key, fmt.Errorf("%w: negative wastage", entities.ErrMalformedOverride))
			}
			line.WastagePct = *o.WastagePct
		}
		if o.IsOptional != nil {
			line.IsOptional = *o.IsOptional
		}
		effective[o.StockItemID] = line
		*nextLineNo++

	case entities.OverrideReplace:
		line, exists := effective[o.StockItemID]
		if !exists {
			return entities.NewConsistencyError(key, fmt.Errorf("%w: REPLACE of %s", entities.ErrLineNotFound, o.StockItemID))
		}
		if o.Qty == nil && o.UnitID == nil && o.WastagePct == nil && o.IsOptional == nil {
			return entities.NewValidationError(key, fmt.Errorf("%w: REPLACE changes nothing", entities.ErrMalformedOverride))
		}
		if o.Qty != nil {
			if !o.Qty.IsPositive() {
				return entities.NewValidationError(key, fmt.Errorf("%w: non-positive quantity", entities.ErrMalformedOverride))
			}
			line.QtyPerReference = *o.Qty
		}
		if o.UnitID != nil {
			if *o.UnitID == "" {
				return entities.NewValidationError(key, fmt.Errorf("%w: empty unit", entities.ErrMalformedOverride))
			}
			line.UnitID = *o.UnitID
		}
		if o.WastagePct != nil {
			if o.WastagePct.IsNegative() {
				return entities.NewValidationError(key, fmt.Errorf("%w: negative wastage", entities.ErrMalformedOverride))
			}
			line.WastagePct = *o.WastagePct
		}
		if o.IsOptional != nil {
			line.IsOptional = *o.IsOptional
		}
		line.Origin = entities.OverrideReplace

	case entities.OverrideRemove:
		delete(effective, o.StockItemID)

	default:
		return entities.NewValidationError(key, fmt.Errorf("%w: unknown op %q", entities.ErrMalformedOverride, o.Op))
	}
	return nil
}
