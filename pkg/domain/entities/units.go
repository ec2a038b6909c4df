package entities

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Unit is a unit of measure within a dimension (mass, volume, count...)
type Unit struct {
	ID        string `json:"id" gorm:"primaryKey;size:32"`
	Name      string `json:"name" gorm:"size:64"`
	Dimension string `json:"dimension" gorm:"size:32;not null"`
}

// UomConversion is a directed conversion edge: qty_in_to = qty_in_from * Factor.
// An inverse edge is a separate row.
type UomConversion struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	FromUnitID string          `json:"from_unit_id" gorm:"size:32;not null;uniqueIndex:idx_uom_edge"`
	ToUnitID   string          `json:"to_unit_id" gorm:"size:32;not null;uniqueIndex:idx_uom_edge"`
	Factor     decimal.Decimal `json:"factor" gorm:"type:decimal(24,10);not null"`
}

// NewUomConversion creates a validated conversion edge
func NewUomConversion(fromUnitID, toUnitID string, factor decimal.Decimal) (*UomConversion, error) {
	if fromUnitID == "" || toUnitID == "" {
		return nil, fmt.Errorf("conversion units cannot be empty")
	}
	if fromUnitID == toUnitID {
		return nil, fmt.Errorf("conversion from %s to itself", fromUnitID)
	}
	if !factor.IsPositive() {
		return nil, fmt.Errorf("conversion factor must be positive, got %s", factor)
	}
	return &UomConversion{FromUnitID: fromUnitID, ToUnitID: toUnitID, Factor: factor}, nil
}
