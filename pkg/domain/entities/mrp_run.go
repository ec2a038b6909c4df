package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RunStatus is the lifecycle of an MRP run
type RunStatus string

const (
	RunDraft     RunStatus = "draft"
	RunFinalized RunStatus = "finalized"
)

// RootTier identifies what level 0 of an explosion is
type RootTier string

const (
	// TierRM roots are planned batch quantities of a product
	TierRM RootTier = "RM"
	// TierPLM roots are forecast units-to-fill of a SKU
	TierPLM RootTier = "PLM"
)

// MRPRun is an append-only snapshot of exploded requirements for one month
type MRPRun struct {
	ID           string     `json:"id" gorm:"primaryKey;size:64"`
	MonthStart   time.Time  `json:"month_start" gorm:"not null;index"`
	Scope        string     `json:"scope" gorm:"size:64;not null"`
	Status       RunStatus  `json:"status" gorm:"size:16;not null"`
	OverlayRunID *string    `json:"overlay_run_id,omitempty" gorm:"size:64"`
	RowsInserted int        `json:"rows_inserted"`
	FailedRoots  int        `json:"failed_roots"`
	CreatedAt    time.Time  `json:"created_at"`
	FinalizedAt  *time.Time `json:"finalized_at,omitempty"`
}

// BeforeCreate assigns a UUID
func (r *MRPRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// MRPScope is the activation scope of a month's MRP runs
func MRPScope(month time.Time) string {
	return "mrp:" + MonthKey(month)
}

// OverlayScope is the activation scope of a window's overlay runs
func OverlayScope(planStart, planEnd time.Time) string {
	return fmt.Sprintf("overlay:%s:%s", MonthKey(planStart), MonthKey(planEnd))
}

// RequirementDetail is one root-to-leaf contribution of an explosion
type RequirementDetail struct {
	ID               uint            `json:"-" gorm:"primaryKey"`
	RunID            string          `json:"run_id" gorm:"size:64;not null;index"`
	Seq              int             `json:"seq" gorm:"not null"`
	RootTier         RootTier        `json:"root_tier" gorm:"size:8;not null"`
	RootID           string          `json:"root_id" gorm:"size:64;not null"`
	StockItemID      string          `json:"stock_item_id" gorm:"size:64;not null;index"`
	MaterialKind     MaterialKind    `json:"material_kind" gorm:"size:8;not null"`
	GrossRequiredQty decimal.Decimal `json:"gross_required_qty" gorm:"type:decimal(24,10);not null"`
	UnitID           string          `json:"unit_id" gorm:"size:32;not null"`
	IsOptional       bool            `json:"is_optional"`
	Lineage          []LineageStep   `json:"lineage" gorm:"foreignKey:DetailID"`
}

// LineageStep is one edge of the explosion path. Level 0 carries the root
// quantity as its multiplier, so the product of all multipliers is the
// gross required quantity.
type LineageStep struct {
	ID           uint            `json:"-" gorm:"primaryKey"`
	DetailID     uint            `json:"-" gorm:"not null;index"`
	Level        int             `json:"level" gorm:"not null"`
	ParentItemID string          `json:"parent_item_id" gorm:"size:64"`
	ItemID       string          `json:"item_id" gorm:"size:64;not null"`
	Multiplier   decimal.Decimal `json:"multiplier" gorm:"type:decimal(24,10);not null"`
}

// LineageProduct multiplies all multipliers of a lineage
func LineageProduct(steps []LineageStep) decimal.Decimal {
	p := decimal.NewFromInt(1)
	for _, s := range steps {
		p = p.Mul(s.Multiplier)
	}
	return p
}

// RequirementTotal aggregates a run's details for one stock item
type RequirementTotal struct {
	StockItemID    string          `json:"stock_item_id"`
	MaterialKind   MaterialKind    `json:"material_kind"`
	UnitID         string          `json:"unit_id"`
	Gross          decimal.Decimal `json:"gross"`
	Mandatory      decimal.Decimal `json:"mandatory"`
	ProcurementQty decimal.Decimal `json:"procurement_qty"`
}

// ActiveRunPointer is the single mutable pointer among versioned runs of a scope
type ActiveRunPointer struct {
	Scope       string    `json:"scope" gorm:"primaryKey;size:96"`
	RunID       string    `json:"run_id" gorm:"size:64;not null"`
	ActivatedAt time.Time `json:"activated_at" gorm:"not null"`
}
