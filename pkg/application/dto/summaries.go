package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
)

// Failure records one key that could not be processed while the rest of
// the job continued
type Failure struct {
	Key   string `json:"key"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// FailureKind classifies err for summaries
func FailureKind(err error) string {
	switch {
	case entities.IsValidation(err):
		return "validation"
	case entities.IsConsistency(err):
		return "consistency"
	default:
		return "error"
	}
}

// NewFailure builds a Failure from err
func NewFailure(key string, err error) Failure {
	return Failure{Key: key, Kind: FailureKind(err), Error: err.Error()}
}

// PlanLineSummary describes one built or rebuilt plan line
type PlanLineSummary struct {
	LineID       string                        `json:"line_id"`
	ProductID    string                        `json:"product_id"`
	Month        string                        `json:"month"`
	FinalMakeQty decimal.Decimal               `json:"final_make_qty"`
	SourceRule   entities.SourceRule           `json:"source_rule"`
	BatchSizes   []decimal.Decimal             `json:"batch_sizes"`
	ResidualQty  decimal.Decimal               `json:"residual_qty"`
	Mismatches   []string                      `json:"mismatched_batches,omitempty"`
	Warnings     []entities.DataQualityWarning `json:"warnings,omitempty"`
}

// BuildPlanSummary is the outcome of building a plan window
type BuildPlanSummary struct {
	HeaderID        string            `json:"header_id"`
	From            string            `json:"from"`
	To              string            `json:"to"`
	LinesInserted   int               `json:"lines_inserted"`
	LinesRebuilt    int               `json:"lines_rebuilt"`
	BatchesInserted int               `json:"batches_inserted"`
	Lines           []PlanLineSummary `json:"lines"`
	Failures        []Failure         `json:"failures"`
}

// MRPRunSummary is the outcome of rebuilding one month's requirements
type MRPRunSummary struct {
	RunID        string                        `json:"run_id"`
	Month        string                        `json:"month"`
	OverlayRunID *string                       `json:"overlay_run_id,omitempty"`
	Rows         int                           `json:"rows"`
	Totals       []entities.RequirementTotal   `json:"totals"`
	Failures     []Failure                     `json:"failures"`
	Warnings     []entities.DataQualityWarning `json:"warnings"`
	FinalizedAt  time.Time                     `json:"finalized_at"`
}

// OverlaySummary is the outcome of a season overlay build
type OverlaySummary struct {
	RunID     string                   `json:"run_id"`
	PlanStart string                   `json:"plan_start"`
	PlanEnd   string                   `json:"plan_end"`
	Rows      int                      `json:"rows"`
	Activated bool                     `json:"activated"`
	Details   []entities.OverlayDetail `json:"details"`
	Skipped   []string                 `json:"skipped_months,omitempty"`
}

// AllocationSummary is the outcome of persisting a reconciliation
type AllocationSummary struct {
	Updated   int `json:"updated"`
	Confirmed int `json:"kept_confirmed"`
	Unchanged int `json:"unchanged"`
}
