package entities

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers match them with errors.Is through the
// ValidationError / ConsistencyError wrappers.
var (
	ErrNotFound             = errors.New("not found")
	ErrNoConversionPath     = errors.New("no conversion path")
	ErrInvalidSeasonWeights = errors.New("invalid season weights")
	ErrMalformedOverride    = errors.New("malformed override")
	ErrInvalidBatchBounds   = errors.New("invalid batch bounds")
	ErrMissingBOM           = errors.New("missing bom")
	ErrDuplicateLine        = errors.New("duplicate line")
	ErrLineNotFound         = errors.New("line not found")
	ErrBomCycleDetected     = errors.New("bom cycle detected")
	ErrBatchAlreadyLinked   = errors.New("batch already linked")
	ErrRecordAlreadyLinked  = errors.New("record already linked to another batch")
	ErrRunFinalized         = errors.New("run is finalized")
)

// ValidationError marks bad input: missing conversions, invalid weights,
// malformed overrides. The operation aborts without partial writes.
type ValidationError struct {
	Key string
	Err error
}

func (e *ValidationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("validation error: %v", e.Err)
	}
	return fmt.Sprintf("validation error for %s: %v", e.Key, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError wraps err for key.
func NewValidationError(key string, err error) error {
	return &ValidationError{Key: key, Err: err}
}

// ConsistencyError marks structurally inconsistent master data (BOM cycles,
// duplicate ADD, REPLACE without target). Only the affected sub-computation
// aborts.
type ConsistencyError struct {
	Key string
	Err error
}

func (e *ConsistencyError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("consistency error: %v", e.Err)
	}
	return fmt.Sprintf("consistency error for %s: %v", e.Key, e.Err)
}

func (e *ConsistencyError) Unwrap() error { return e.Err }

// NewConsistencyError wraps err for key.
func NewConsistencyError(key string, err error) error {
	return &ConsistencyError{Key: key, Err: err}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConsistency reports whether err carries a ConsistencyError.
func IsConsistency(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}

// WarningKind classifies a DataQualityWarning
type WarningKind string

const (
	WarningUnmappedStockItem  WarningKind = "unmapped_stock_item"
	WarningUnmatchedIssueLine WarningKind = "unmatched_issue_line"
	WarningBatchSizeMismatch  WarningKind = "batch_size_mismatch"
	WarningUnitConversion     WarningKind = "unit_conversion"
	WarningNegativeResidual   WarningKind = "negative_residual"
	WarningDuplicatePlanLine  WarningKind = "duplicate_plan_line"
)

// DataQualityWarning is a row-level flag. Source data is known to be
// incomplete, so these are recorded and never fail a run.
type DataQualityWarning struct {
	Kind    WarningKind `json:"kind"`
	Key     string      `json:"key"`
	Message string      `json:"message"`
}
