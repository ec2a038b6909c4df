package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// MonthStart truncates t to the first day of its month in UTC
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthKey formats a month as YYYY-MM
func MonthKey(t time.Time) string {
	return MonthStart(t).Format("2006-01")
}

// MonthsBetween lists month starts from..to inclusive
func MonthsBetween(from, to time.Time) []time.Time {
	var months []time.Time
	for m := MonthStart(from); !m.After(MonthStart(to)); m = m.AddDate(0, 1, 0) {
		months = append(months, m)
	}
	return months
}

// ProductMonthDemand is the upstream final make quantity for a product-month.
// It is produced by the demand/supply collaborators and only read here.
type ProductMonthDemand struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	ProductID    string          `json:"product_id" gorm:"size:64;not null;uniqueIndex:idx_product_month_demand"`
	MonthStart   time.Time       `json:"month_start" gorm:"not null;uniqueIndex:idx_product_month_demand"`
	FinalMakeQty decimal.Decimal `json:"final_make_qty" gorm:"type:decimal(18,6);not null"`
}

// MakeQtyOverride is a planner override of the final make quantity
type MakeQtyOverride struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	ProductID    string          `json:"product_id" gorm:"size:64;not null;uniqueIndex:idx_make_override"`
	MonthStart   time.Time       `json:"month_start" gorm:"not null;uniqueIndex:idx_make_override"`
	FinalMakeQty decimal.Decimal `json:"final_make_qty" gorm:"type:decimal(18,6);not null"`
	Reason       string          `json:"reason" gorm:"size:255"`
}

// SkuMonthForecast is the forecast units-to-fill of a SKU for a month
type SkuMonthForecast struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	SkuID       string          `json:"sku_id" gorm:"size:64;not null;uniqueIndex:idx_sku_month"`
	MonthStart  time.Time       `json:"month_start" gorm:"not null;uniqueIndex:idx_sku_month"`
	UnitsToFill decimal.Decimal `json:"units_to_fill" gorm:"type:decimal(18,6);not null"`
}
