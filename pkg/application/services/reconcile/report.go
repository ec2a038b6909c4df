package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
)

// ExceptionKind classifies a planned versus issued discrepancy
type ExceptionKind string

const (
	NoPlanButIssued  ExceptionKind = "noPlanButIssued"
	OverIssued       ExceptionKind = "overIssued"
	PlannedNotIssued ExceptionKind = "plannedNotIssued"
)

// Allocation is the proposed attribution of one issue line
type Allocation struct {
	IssueID     string                    `json:"issue_id"`
	IssueDate   string                    `json:"issue_date"`
	RawBatchRef string                    `json:"raw_batch_ref,omitempty"`
	RawItemText string                    `json:"raw_item_text"`
	Status      entities.AllocationStatus `json:"status"`
	StockItemID string                    `json:"stock_item_id,omitempty"`
	BatchID     string                    `json:"batch_id,omitempty"`
	ProductID   string                    `json:"product_id,omitempty"`
	Qty         decimal.Decimal           `json:"qty"`
	UnitID      string                    `json:"unit_id"`
	Candidates  []string                  `json:"candidates,omitempty"`
	Note        string                    `json:"note,omitempty"`
	Confirmed   bool                      `json:"confirmed,omitempty"`
}

// ItemVariance compares planned and issued quantities of one stock item,
// both in the item's default unit
type ItemVariance struct {
	StockItemID  string                `json:"stock_item_id"`
	MaterialKind entities.MaterialKind `json:"material_kind"`
	UnitID       string                `json:"unit_id"`
	Planned      decimal.Decimal       `json:"planned"`
	Issued       decimal.Decimal       `json:"issued"`
	Variance     decimal.Decimal       `json:"variance"`
	// VariancePct is nil when nothing was planned
	VariancePct *decimal.Decimal `json:"variance_pct,omitempty"`
}

// Exception flags an item whose issues disagree with its plan
type Exception struct {
	Kind ExceptionKind `json:"kind"`
	ItemVariance
}

// Report is the outcome of reconciling one horizon month
type Report struct {
	HorizonStart string                        `json:"horizon_start"`
	MaterialKind entities.MaterialKind         `json:"material_kind,omitempty"`
	MRPRunID     string                        `json:"mrp_run_id,omitempty"`
	Elapsed      bool                          `json:"horizon_elapsed"`
	Matched      []Allocation                  `json:"matched"`
	Approximate  []Allocation                  `json:"approximate"`
	Unassigned   []Allocation                  `json:"unassigned"`
	Items        []ItemVariance                `json:"items"`
	Exceptions   []Exception                   `json:"exceptions"`
	Warnings     []entities.DataQualityWarning `json:"warnings"`
	// Unresolved counts lines left out of a kind-filtered report because
	// no stock item could be resolved for them
	Unresolved int `json:"unresolved_outside_filter,omitempty"`
}

// Allocations returns every allocation of the report in issue order
// within each status
func (r *Report) Allocations() []Allocation {
	all := make([]Allocation, 0, len(r.Matched)+len(r.Approximate)+len(r.Unassigned))
	all = append(all, r.Matched...)
	all = append(all, r.Approximate...)
	all = append(all, r.Unassigned...)
	return all
}
