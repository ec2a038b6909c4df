package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SourceRule tells how a batch came to exist
type SourceRule string

const (
	SourceSystem   SourceRule = "system"
	SourceManual   SourceRule = "manual"
	SourceOverride SourceRule = "override"
)

// BatchSizeRule is a time-versioned batch size constraint for a product.
// The row with the latest EffectiveFrom not after the reference date wins.
type BatchSizeRule struct {
	ID                uint            `json:"id" gorm:"primaryKey"`
	ProductID         string          `json:"product_id" gorm:"size:64;not null;uniqueIndex:idx_batch_rule"`
	EffectiveFrom     time.Time       `json:"effective_from" gorm:"not null;uniqueIndex:idx_batch_rule"`
	MinBatch          decimal.Decimal `json:"min_batch" gorm:"type:decimal(18,6);not null"`
	MaxBatch          decimal.Decimal `json:"max_batch" gorm:"type:decimal(18,6);not null"`
	PreferredBatch    decimal.Decimal `json:"preferred_batch" gorm:"type:decimal(18,6);not null"`
	NudgeThresholdPct decimal.Decimal `json:"nudge_threshold_pct" gorm:"type:decimal(9,4);not null;default:0"`
}

// Validate checks 0 < min <= preferred <= max
func (r *BatchSizeRule) Validate() error {
	if !r.MinBatch.IsPositive() {
		return fmt.Errorf("%w: min batch must be positive, got %s", ErrInvalidBatchBounds, r.MinBatch)
	}
	if r.PreferredBatch.LessThan(r.MinBatch) || r.PreferredBatch.GreaterThan(r.MaxBatch) {
		return fmt.Errorf("%w: need min <= preferred <= max, got %s/%s/%s",
			ErrInvalidBatchBounds, r.MinBatch, r.PreferredBatch, r.MaxBatch)
	}
	return nil
}

// BatchPlanHeader owns a planning window
type BatchPlanHeader struct {
	ID          string    `json:"id" gorm:"primaryKey;size:64"`
	Title       string    `json:"title" gorm:"size:255"`
	WindowStart time.Time `json:"window_start" gorm:"not null"`
	WindowEnd   time.Time `json:"window_end" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
}

// BeforeCreate assigns a UUID
func (h *BatchPlanHeader) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	return nil
}

// BatchPlanLine is one product-month of a plan.
// Invariant: sum(batch sizes) + ResidualQty == FinalMakeQty.
type BatchPlanLine struct {
	ID             string          `json:"id" gorm:"primaryKey;size:64"`
	HeaderID       string          `json:"header_id" gorm:"size:64;not null;uniqueIndex:idx_plan_line"`
	ProductID      string          `json:"product_id" gorm:"size:64;not null;uniqueIndex:idx_plan_line"`
	MonthStart     time.Time       `json:"month_start" gorm:"not null;uniqueIndex:idx_plan_line;index"`
	BOMHeaderID    string          `json:"bom_header_id" gorm:"size:64"`
	FinalMakeQty   decimal.Decimal `json:"final_make_qty" gorm:"type:decimal(18,6);not null"`
	MinBatch       decimal.Decimal `json:"min_batch" gorm:"type:decimal(18,6);not null"`
	MaxBatch       decimal.Decimal `json:"max_batch" gorm:"type:decimal(18,6);not null"`
	PreferredBatch decimal.Decimal `json:"preferred_batch" gorm:"type:decimal(18,6);not null"`
	ResidualQty    decimal.Decimal `json:"residual_qty" gorm:"type:decimal(18,6);not null"`
	SourceRule     SourceRule      `json:"source_rule" gorm:"size:16;not null"`
	RuleID         uint            `json:"rule_id"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Batches        []Batch         `json:"batches,omitempty" gorm:"foreignKey:LineID"`
}

// BeforeCreate assigns a UUID
func (l *BatchPlanLine) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return nil
}

// Batch is one planned production unit. RecordRef links it to a
// manufacturing record; the link is one-way and unique.
type Batch struct {
	ID           string          `json:"id" gorm:"primaryKey;size:64"`
	LineID       string          `json:"line_id" gorm:"size:64;not null;index"`
	SeqNo        int             `json:"seq_no" gorm:"not null"`
	Size         decimal.Decimal `json:"size" gorm:"type:decimal(18,6);not null"`
	PlannedSize  decimal.Decimal `json:"planned_size" gorm:"type:decimal(18,6);not null"`
	SourceRule   SourceRule      `json:"source_rule" gorm:"size:16;not null"`
	RecordRef    *string         `json:"record_ref,omitempty" gorm:"size:128;uniqueIndex"`
	SizeMismatch bool            `json:"size_mismatch" gorm:"not null;default:false"`
	LinkedAt     *time.Time      `json:"linked_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// BeforeCreate assigns a UUID
func (b *Batch) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}

// IsLinked reports whether the batch carries a manufacturing record
func (b *Batch) IsLinked() bool {
	return b.RecordRef != nil && *b.RecordRef != ""
}
