package explosion

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
)

// AggregateTotals sums detail rows per stock item. ProcurementQty starts
// equal to Gross; a seasonal overlay may move it afterwards.
func AggregateTotals(details []*entities.RequirementDetail) []entities.RequirementTotal {
	byItem := make(map[string]*entities.RequirementTotal)
	for _, d := range details {
		total, ok := byItem[d.StockItemID]
		if !ok {
			total = &entities.RequirementTotal{
				StockItemID:  d.StockItemID,
				MaterialKind: d.MaterialKind,
				UnitID:       d.UnitID,
				Gross:        decimal.Zero,
				Mandatory:    decimal.Zero,
			}
			byItem[d.StockItemID] = total
		}
		total.Gross = total.Gross.Add(d.GrossRequiredQty)
		if !d.IsOptional {
			total.Mandatory = total.Mandatory.Add(d.GrossRequiredQty)
		}
	}

	totals := make([]entities.RequirementTotal, 0, len(byItem))
	for _, total := range byItem {
		total.ProcurementQty = total.Gross
		totals = append(totals, *total)
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].StockItemID < totals[j].StockItemID })
	return totals
}
