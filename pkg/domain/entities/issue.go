package entities

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AllocationStatus tells how confidently an issue line was attributed
type AllocationStatus string

const (
	AllocationMatched     AllocationStatus = "matched"
	AllocationApproximate AllocationStatus = "approximate"
	AllocationUnassigned  AllocationStatus = "unassigned"
)

// IssueLine is an actual material consumption transaction from the ERP
// export. Resolved ids stay nil until allocation succeeds.
type IssueLine struct {
	ID               string           `json:"id" gorm:"primaryKey;size:64"`
	IssueDate        time.Time        `json:"issue_date" gorm:"not null;index"`
	RawBatchRef      string           `json:"raw_batch_ref" gorm:"size:255"`
	RawItemText      string           `json:"raw_item_text" gorm:"size:255"`
	StockItemID      *string          `json:"stock_item_id,omitempty" gorm:"size:64"`
	ProductID        *string          `json:"product_id,omitempty" gorm:"size:64"`
	SkuID            *string          `json:"sku_id,omitempty" gorm:"size:64"`
	BatchID          *string          `json:"batch_id,omitempty" gorm:"size:64"`
	Qty              decimal.Decimal  `json:"qty" gorm:"type:decimal(18,6);not null"`
	UnitID           string           `json:"unit_id" gorm:"size:32;not null"`
	AllocationStatus AllocationStatus `json:"allocation_status" gorm:"size:16;not null;default:unassigned"`
	AllocationNote   string           `json:"allocation_note" gorm:"size:512"`
	ConfirmedBy      string           `json:"confirmed_by,omitempty" gorm:"size:64"`
}

// NewIssueLine creates a validated, unassigned IssueLine
func NewIssueLine(id string, issueDate time.Time, rawBatchRef, rawItemText string, qty decimal.Decimal, unitID string) (*IssueLine, error) {
	if id == "" {
		return nil, fmt.Errorf("issue line id cannot be empty")
	}
	if issueDate.IsZero() {
		return nil, fmt.Errorf("issue date cannot be empty for %s", id)
	}
	if qty.IsNegative() {
		return nil, fmt.Errorf("issued quantity cannot be negative, got %s", qty)
	}
	if unitID == "" {
		return nil, fmt.Errorf("unit cannot be empty for %s", id)
	}
	return &IssueLine{
		ID:               id,
		IssueDate:        issueDate,
		RawBatchRef:      rawBatchRef,
		RawItemText:      rawItemText,
		Qty:              qty,
		UnitID:           unitID,
		AllocationStatus: AllocationUnassigned,
	}, nil
}

// IsConfirmed reports whether a planner confirmed the allocation manually
func (l *IssueLine) IsConfirmed() bool {
	return l.ConfirmedBy != ""
}
