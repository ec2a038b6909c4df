package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SeasonProfile groups the procurement weights of seasonal items
type SeasonProfile struct {
	ID      string         `json:"id" gorm:"primaryKey;size:64"`
	Name    string         `json:"name" gorm:"size:128"`
	Weights []SeasonWeight `json:"weights,omitempty" gorm:"foreignKey:ProfileID"`
}

// SeasonWeight is the share of a baseline requirement procured in a calendar month
type SeasonWeight struct {
	ID               uint            `json:"id" gorm:"primaryKey"`
	ProfileID        string          `json:"profile_id" gorm:"size:64;not null;uniqueIndex:idx_season_month"`
	ProcurementMonth int             `json:"procurement_month" gorm:"not null;uniqueIndex:idx_season_month"`
	Weight           decimal.Decimal `json:"weight" gorm:"type:decimal(12,8);not null"`
}

// OverlayRun is an immutable redistribution snapshot for a planning window
type OverlayRun struct {
	ID         string    `json:"id" gorm:"primaryKey;size:64"`
	PlanStart  time.Time `json:"plan_start" gorm:"not null;index"`
	PlanEnd    time.Time `json:"plan_end" gorm:"not null"`
	DetailRows int       `json:"detail_rows"`
	CreatedAt  time.Time `json:"created_at"`
}

// BeforeCreate assigns a UUID
func (r *OverlayRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// Covers reports whether month falls inside the run's window
func (r *OverlayRun) Covers(month time.Time) bool {
	m := MonthStart(month)
	return !m.Before(MonthStart(r.PlanStart)) && !m.After(MonthStart(r.PlanEnd))
}

// OverlayDetail moves part of a baseline month's requirement to a procurement month
type OverlayDetail struct {
	ID               uint            `json:"id" gorm:"primaryKey"`
	RunID            string          `json:"run_id" gorm:"size:64;not null;index"`
	StockItemID      string          `json:"stock_item_id" gorm:"size:64;not null"`
	BaselineMonth    time.Time       `json:"baseline_month" gorm:"not null"`
	ProcurementMonth time.Time       `json:"procurement_month" gorm:"not null"`
	BaselineQty      decimal.Decimal `json:"baseline_qty" gorm:"type:decimal(18,6);not null"`
	Weight           decimal.Decimal `json:"weight" gorm:"type:decimal(12,8);not null"`
	RedistributedQty decimal.Decimal `json:"redistributed_qty" gorm:"type:decimal(18,6);not null"`
}
