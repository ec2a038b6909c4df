package entities

import (
	"fmt"
	"strings"
)

// MaterialKind classifies a stock item for planning purposes
type MaterialKind string

const (
	MaterialRM MaterialKind = "RM"
	MaterialPM MaterialKind = "PM"
	MaterialSP MaterialKind = "SP"
	MaterialFG MaterialKind = "FG"
)

// ParseMaterialKind parses a material kind, case-insensitively
func ParseMaterialKind(s string) (MaterialKind, error) {
	switch MaterialKind(strings.ToUpper(strings.TrimSpace(s))) {
	case MaterialRM:
		return MaterialRM, nil
	case MaterialPM:
		return MaterialPM, nil
	case MaterialSP:
		return MaterialSP, nil
	case MaterialFG:
		return MaterialFG, nil
	default:
		return "", fmt.Errorf("unknown material kind: %q", s)
	}
}

// Classification is the admin-editable category path of a stock item
type Classification struct {
	Category    string `json:"category" gorm:"size:128"`
	SubCategory string `json:"sub_category" gorm:"size:128"`
	Group       string `json:"group" gorm:"column:item_group;size:128"`
	SubGroup    string `json:"sub_group" gorm:"size:128"`
}

// StockItem represents an inventory item consumed by BOMs
type StockItem struct {
	ID              string         `json:"id" gorm:"primaryKey;size:64"`
	Code            string         `json:"code" gorm:"size:64;uniqueIndex;not null"`
	Name            string         `json:"name" gorm:"size:255"`
	DefaultUnitID   string         `json:"default_unit_id" gorm:"size:32;not null"`
	Classification  Classification `json:"classification" gorm:"embedded"`
	MaterialKind    MaterialKind   `json:"material_kind" gorm:"size:8;not null"`
	SeasonProfileID *string        `json:"season_profile_id,omitempty" gorm:"size:64"`
}

// NewStockItem creates a validated StockItem
func NewStockItem(id, code, name, defaultUnitID string, kind MaterialKind) (*StockItem, error) {
	if id == "" {
		return nil, fmt.Errorf("stock item id cannot be empty")
	}
	if code == "" {
		return nil, fmt.Errorf("stock item code cannot be empty")
	}
	if defaultUnitID == "" {
		return nil, fmt.Errorf("default unit cannot be empty for %s", id)
	}
	if _, err := ParseMaterialKind(string(kind)); err != nil {
		return nil, err
	}
	return &StockItem{
		ID:            id,
		Code:          code,
		Name:          name,
		DefaultUnitID: defaultUnitID,
		MaterialKind:  kind,
	}, nil
}

// IsSeasonal reports whether the item follows a season profile
func (s *StockItem) IsSeasonal() bool {
	return s.SeasonProfileID != nil && *s.SeasonProfileID != ""
}

// StockItemAlias is an alternative name under which a stock item shows up
// in source ledgers
type StockItemAlias struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	StockItemID string `json:"stock_item_id" gorm:"size:64;not null;uniqueIndex:idx_item_alias"`
	Alias       string `json:"alias" gorm:"size:255;not null;uniqueIndex:idx_item_alias"`
}

// Product is a finished good made in batches against an RM BOM
type Product struct {
	ID     string `json:"id" gorm:"primaryKey;size:64"`
	Code   string `json:"code" gorm:"size:64;uniqueIndex;not null"`
	Name   string `json:"name" gorm:"size:255"`
	UnitID string `json:"unit_id" gorm:"size:32;not null"`
}

// SKU is a packed variant of a product, filled against a PLM BOM
type SKU struct {
	ID        string `json:"id" gorm:"primaryKey;size:64"`
	Code      string `json:"code" gorm:"size:64;uniqueIndex;not null"`
	ProductID string `json:"product_id" gorm:"size:64;index;not null"`
	UnitID    string `json:"unit_id" gorm:"size:32;not null"`
}

// SkuPackMap maps a SKU onto its shared PLM template
type SkuPackMap struct {
	SkuID      string `json:"sku_id" gorm:"primaryKey;size:64"`
	TemplateID string `json:"template_id" gorm:"size:64;index;not null"`
}
