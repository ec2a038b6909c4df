package events

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PlanBuiltEvent       = "plan.built"
	PlanLineRebuiltEvent = "plan.line.rebuilt"
	BatchLinkedEvent     = "batch.linked"
	MRPRunFinalizedEvent = "mrp.run.finalized"
	RunActivatedEvent    = "run.activated"
	OverlayBuiltEvent    = "overlay.built"
	ReconciliationEvent  = "reconcile.completed"
	AllocationSavedEvent = "allocation.saved"
	JobFailedEvent       = "job.failed"
)

type PlanBuilt struct {
	HeaderID        string `json:"header_id"`
	LinesInserted   int    `json:"lines_inserted"`
	LinesRebuilt    int    `json:"lines_rebuilt"`
	BatchesInserted int    `json:"batches_inserted"`
	Failures        int    `json:"failures"`
}

type PlanLineRebuilt struct {
	LineID         string `json:"line_id"`
	BatchesKept    int    `json:"batches_kept"`
	BatchesWritten int    `json:"batches_written"`
	Mismatches     int    `json:"mismatches"`
}

type BatchLinked struct {
	BatchID   string `json:"batch_id"`
	RecordRef string `json:"record_ref"`
}

type MRPRunFinalized struct {
	RunID        string    `json:"run_id"`
	Month        time.Time `json:"month"`
	RowsInserted int       `json:"rows_inserted"`
	FailedRoots  int       `json:"failed_roots"`
}

type RunActivated struct {
	Scope string `json:"scope"`
	RunID string `json:"run_id"`
}

type OverlayBuilt struct {
	RunID      string `json:"run_id"`
	DetailRows int    `json:"detail_rows"`
	Activated  bool   `json:"activated"`
}

type ReconciliationCompleted struct {
	Horizon    time.Time       `json:"horizon"`
	Lines      int             `json:"lines"`
	Exceptions int             `json:"exceptions"`
	Issued     decimal.Decimal `json:"issued"`
}

type AllocationSaved struct {
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

type JobFailed struct {
	Scope string `json:"scope"`
	Error string `json:"error"`
}
