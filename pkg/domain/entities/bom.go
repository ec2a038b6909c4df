package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// BOMKind identifies the tier a BOM belongs to
type BOMKind string

const (
	// BOMKindPLM is a packaging-material BOM filled per SKU unit
	BOMKindPLM BOMKind = "PLM"
	// BOMKindRM is a raw-material BOM owned by a product
	BOMKindRM BOMKind = "RM"
	// BOMKindSP is a semi-process BOM owned by an intermediate stock item
	BOMKindSP BOMKind = "SP"
)

// ParseBOMKind parses a BOM kind, case-insensitively
func ParseBOMKind(s string) (BOMKind, error) {
	switch BOMKind(strings.ToUpper(strings.TrimSpace(s))) {
	case BOMKindPLM:
		return BOMKindPLM, nil
	case BOMKindRM:
		return BOMKindRM, nil
	case BOMKindSP:
		return BOMKindSP, nil
	default:
		return "", fmt.Errorf("unknown bom kind: %q", s)
	}
}

// BOMHeader owns the scaling anchor and process loss of a BOM
type BOMHeader struct {
	ID                    string          `json:"id" gorm:"primaryKey;size:64"`
	Kind                  BOMKind         `json:"kind" gorm:"size:8;not null;index:idx_bom_owner"`
	OwnerID               string          `json:"owner_id" gorm:"size:64;index:idx_bom_owner"`
	ReferenceOutputQty    decimal.Decimal `json:"reference_output_qty" gorm:"type:decimal(18,6);not null"`
	ReferenceOutputUnitID string          `json:"reference_output_unit_id" gorm:"size:32;not null"`
	ProcessLossPct        decimal.Decimal `json:"process_loss_pct" gorm:"type:decimal(9,4);not null;default:0"`
	IsTemplate            bool            `json:"is_template" gorm:"not null;default:false"`
	LastUpdatedAt         time.Time       `json:"last_updated_at" gorm:"autoUpdateTime"`
}

// Validate checks the header's scaling parameters
func (h *BOMHeader) Validate() error {
	if h.ID == "" {
		return fmt.Errorf("bom header id cannot be empty")
	}
	if !h.ReferenceOutputQty.IsPositive() {
		return fmt.Errorf("bom %s: reference output quantity must be positive, got %s", h.ID, h.ReferenceOutputQty)
	}
	if h.ReferenceOutputUnitID == "" {
		return fmt.Errorf("bom %s: reference output unit cannot be empty", h.ID)
	}
	if h.ProcessLossPct.IsNegative() || h.ProcessLossPct.GreaterThanOrEqual(hundred) {
		return fmt.Errorf("bom %s: process loss must be in [0, 100), got %s", h.ID, h.ProcessLossPct)
	}
	return nil
}

// BOMLine is a consumed stock item per reference output of its header
type BOMLine struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	HeaderID        string          `json:"header_id" gorm:"size:64;not null;uniqueIndex:idx_bom_line"`
	LineNo          int             `json:"line_no" gorm:"not null;uniqueIndex:idx_bom_line"`
	StockItemID     string          `json:"stock_item_id" gorm:"size:64;not null"`
	QtyPerReference decimal.Decimal `json:"qty_per_reference" gorm:"type:decimal(18,6);not null"`
	UnitID          string          `json:"unit_id" gorm:"size:32;not null"`
	WastagePct      decimal.Decimal `json:"wastage_pct" gorm:"type:decimal(9,4);not null;default:0"`
	IsOptional      bool            `json:"is_optional" gorm:"not null;default:false"`
}

// NewBOMLine creates a validated BOMLine
func NewBOMLine(headerID string, lineNo int, stockItemID string, qtyPer decimal.Decimal, unitID string, wastagePct decimal.Decimal, optional bool) (*BOMLine, error) {
	if headerID == "" {
		return nil, fmt.Errorf("header id cannot be empty")
	}
	if stockItemID == "" {
		return nil, fmt.Errorf("stock item id cannot be empty")
	}
	if lineNo <= 0 {
		return nil, fmt.Errorf("line number must be positive, got %d", lineNo)
	}
	if !qtyPer.IsPositive() {
		return nil, fmt.Errorf("quantity per reference must be positive, got %s", qtyPer)
	}
	if unitID == "" {
		return nil, fmt.Errorf("unit cannot be empty")
	}
	if wastagePct.IsNegative() {
		return nil, fmt.Errorf("wastage cannot be negative, got %s", wastagePct)
	}
	return &BOMLine{
		HeaderID:        headerID,
		LineNo:          lineNo,
		StockItemID:     stockItemID,
		QtyPerReference: qtyPer,
		UnitID:          unitID,
		WastagePct:      wastagePct,
		IsOptional:      optional,
	}, nil
}

// OverrideOp is the closed set of per-SKU template deltas
type OverrideOp string

const (
	OverrideAdd     OverrideOp = "ADD"
	OverrideReplace OverrideOp = "REPLACE"
	OverrideRemove  OverrideOp = "REMOVE"
)

// ParseOverrideOp parses an override operation tag
func ParseOverrideOp(s string) (OverrideOp, error) {
	switch OverrideOp(strings.ToUpper(strings.TrimSpace(s))) {
	case OverrideAdd:
		return OverrideAdd, nil
	case OverrideReplace:
		return OverrideReplace, nil
	case OverrideRemove:
		return OverrideRemove, nil
	default:
		return "", fmt.Errorf("unknown override op: %q", s)
	}
}

// BOMOverride is an ordered delta applied to a template for one SKU.
// Nil fields are left untouched by REPLACE.
type BOMOverride struct {
	ID          string           `json:"id" gorm:"primaryKey;size:64"`
	SkuID       string           `json:"sku_id" gorm:"size:64;not null;index:idx_override_sku"`
	TemplateID  string           `json:"template_id" gorm:"size:64;not null;index:idx_override_sku"`
	Seq         int              `json:"seq" gorm:"not null"`
	Op          OverrideOp       `json:"op" gorm:"size:8;not null"`
	StockItemID string           `json:"stock_item_id" gorm:"size:64;not null"`
	Qty         *decimal.Decimal `json:"qty,omitempty" gorm:"type:decimal(18,6)"`
	UnitID      *string          `json:"unit_id,omitempty" gorm:"size:32"`
	WastagePct  *decimal.Decimal `json:"wastage_pct,omitempty" gorm:"type:decimal(9,4)"`
	IsOptional  *bool            `json:"is_optional,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// EffectiveLine is a BOM line after override composition
type EffectiveLine struct {
	LineNo          int             `json:"line_no"`
	StockItemID     string          `json:"stock_item_id"`
	QtyPerReference decimal.Decimal `json:"qty_per_reference"`
	UnitID          string          `json:"unit_id"`
	WastagePct      decimal.Decimal `json:"wastage_pct"`
	IsOptional      bool            `json:"is_optional"`
	Origin          OverrideOp      `json:"origin,omitempty"`
}

// RequiredQty returns qty_per_reference * (target / refQty) * (1 + wastage/100)
func (l EffectiveLine) RequiredQty(target, refQty decimal.Decimal) decimal.Decimal {
	return l.QtyPerReference.Mul(target.Div(refQty)).Mul(one.Add(l.WastagePct.Div(hundred)))
}

// EffectiveBOM is the composed BOM for one owner
type EffectiveBOM struct {
	HeaderID              string          `json:"header_id"`
	Kind                  BOMKind         `json:"kind"`
	OwnerID               string          `json:"owner_id"`
	ReferenceOutputQty    decimal.Decimal `json:"reference_output_qty"`
	ReferenceOutputUnitID string          `json:"reference_output_unit_id"`
	ProcessLossPct        decimal.Decimal `json:"process_loss_pct"`
	Lines                 []EffectiveLine `json:"lines"`
}

// InputForOutput inflates a desired output by the header's process loss:
// output / (1 - loss/100).
func (b *EffectiveBOM) InputForOutput(output decimal.Decimal) decimal.Decimal {
	if b.ProcessLossPct.IsZero() {
		return output
	}
	return output.Div(one.Sub(b.ProcessLossPct.Div(hundred)))
}

// LineFactor is the quantity of line consumed per one unit of desired
// output, loss and wastage included.
func (b *EffectiveBOM) LineFactor(line EffectiveLine) decimal.Decimal {
	return line.RequiredQty(b.InputForOutput(one), b.ReferenceOutputQty)
}

// MandatoryLines returns the non-optional lines
func (b *EffectiveBOM) MandatoryLines() []EffectiveLine {
	lines := make([]EffectiveLine, 0, len(b.Lines))
	for _, l := range b.Lines {
		if !l.IsOptional {
			lines = append(lines, l)
		}
	}
	return lines
}
