package output

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vsinha/mfgplan/pkg/application/dto"
	"github.com/vsinha/mfgplan/pkg/application/services/bom"
	"github.com/vsinha/mfgplan/pkg/application/services/reconcile"
	"github.com/vsinha/mfgplan/pkg/domain/entities"
	"github.com/vsinha/mfgplan/pkg/domain/services"
)

func dec(d decimal.Decimal) string {
	return d.String()
}

func decs(ds []decimal.Decimal) string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = d.String()
	}
	return strings.Join(parts, " ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

// FailuresTable lists keys that could not be processed
func FailuresTable(failures []dto.Failure) Table {
	t := Table{Title: "Failures", Headers: []string{"Key", "Kind", "Error"}}
	for _, f := range failures {
		t.Rows = append(t.Rows, []string{f.Key, f.Kind, f.Error})
	}
	return t
}

// WarningsTable lists data quality warnings
func WarningsTable(warnings []entities.DataQualityWarning) Table {
	t := Table{Title: "Warnings", Headers: []string{"Kind", "Key", "Message"}}
	for _, w := range warnings {
		t.Rows = append(t.Rows, []string{string(w.Kind), w.Key, w.Message})
	}
	return t
}

// BOMTables renders an effective BOM and its requirements for target
func BOMTables(b *entities.EffectiveBOM, target decimal.Decimal) []Table {
	header := Table{
		Title:   "BOM " + b.HeaderID,
		Headers: []string{"Kind", "Owner", "Reference output", "Unit", "Process loss %"},
		Rows: [][]string{{
			string(b.Kind), b.OwnerID, dec(b.ReferenceOutputQty), b.ReferenceOutputUnitID, dec(b.ProcessLossPct),
		}},
	}
	lines := Table{
		Title:   "Effective lines",
		Headers: []string{"Line", "Stock item", "Qty/ref", "Unit", "Wastage %", "Optional", "Origin"},
	}
	for _, l := range b.Lines {
		lines.Rows = append(lines.Rows, []string{
			strconv.Itoa(l.LineNo), l.StockItemID, dec(l.QtyPerReference), l.UnitID, dec(l.WastagePct), yesNo(l.IsOptional), string(l.Origin),
		})
	}
	tables := []Table{header, lines}
	if target.IsPositive() {
		req := Table{
			Title:   "Required for " + dec(target) + " " + b.ReferenceOutputUnitID,
			Headers: []string{"Stock item", "Qty", "Unit", "Optional"},
		}
		for _, r := range bom.RequiredFor(b, target) {
			req.Rows = append(req.Rows, []string{r.StockItemID, dec(r.Qty), r.UnitID, yesNo(r.IsOptional)})
		}
		tables = append(tables, req)
	}
	return tables
}

// CheckTables renders a BOM graph check
func CheckTables(result *services.ValidationResult) []Table {
	cycles := Table{Title: "Cycles", Headers: []string{"Path"}}
	for _, path := range result.CyclePaths {
		cycles.Rows = append(cycles.Rows, []string{strings.Join(path, " -> ")})
	}
	dups := Table{Title: "Duplicate lines", Headers: []string{"Header", "Line", "Stock item"}}
	for _, l := range result.DuplicateLines {
		dups.Rows = append(dups.Rows, []string{l.HeaderID, strconv.Itoa(l.LineNo), l.StockItemID})
	}
	unknown := Table{Title: "Unknown items", Headers: []string{"Stock item"}}
	for _, id := range result.UnknownItems {
		unknown.Rows = append(unknown.Rows, []string{id})
	}
	return []Table{cycles, dups, unknown}
}

// BatchTable renders one batch split
func BatchTable(split services.BatchSplit) Table {
	t := Table{Title: "Batches", Headers: []string{"Seq", "Size"}}
	for i, size := range split.Sizes {
		t.Rows = append(t.Rows, []string{strconv.Itoa(i + 1), dec(size)})
	}
	t.Rows = append(t.Rows, []string{"residual", dec(split.Residual)})
	return t
}

// PlanLineTable renders built plan lines
func PlanLineTable(lines ...dto.PlanLineSummary) Table {
	t := Table{
		Title:   "Plan lines",
		Headers: []string{"Line", "Product", "Month", "Make qty", "Rule", "Batches", "Residual", "Mismatched"},
	}
	for _, l := range lines {
		t.Rows = append(t.Rows, []string{
			l.LineID, l.ProductID, l.Month, dec(l.FinalMakeQty), string(l.SourceRule),
			decs(l.BatchSizes), dec(l.ResidualQty), strings.Join(l.Mismatches, " "),
		})
	}
	return t
}

// PlanTables renders a plan build
func PlanTables(s *dto.BuildPlanSummary) []Table {
	var warnings []entities.DataQualityWarning
	for _, l := range s.Lines {
		warnings = append(warnings, l.Warnings...)
	}
	counts := Table{
		Title:   "Plan " + s.HeaderID + " " + s.From + ".." + s.To,
		Headers: []string{"Lines inserted", "Lines rebuilt", "Batches inserted"},
		Rows: [][]string{{
			strconv.Itoa(s.LinesInserted), strconv.Itoa(s.LinesRebuilt), strconv.Itoa(s.BatchesInserted),
		}},
	}
	return []Table{counts, PlanLineTable(s.Lines...), FailuresTable(s.Failures), WarningsTable(warnings)}
}

// TotalsTable renders requirement totals
func TotalsTable(title string, totals []entities.RequirementTotal) Table {
	t := Table{
		Title:   title,
		Headers: []string{"Stock item", "Kind", "Unit", "Gross", "Mandatory", "Procurement"},
	}
	for _, r := range totals {
		t.Rows = append(t.Rows, []string{
			r.StockItemID, string(r.MaterialKind), r.UnitID, dec(r.Gross), dec(r.Mandatory), dec(r.ProcurementQty),
		})
	}
	return t
}

// MRPTables renders an mrp rebuild
func MRPTables(s *dto.MRPRunSummary) []Table {
	return []Table{
		TotalsTable("Requirements "+s.Month+" (run "+s.RunID+")", s.Totals),
		FailuresTable(s.Failures),
		WarningsTable(s.Warnings),
	}
}

// OverlayTables renders a season overlay build
func OverlayTables(s *dto.OverlaySummary) []Table {
	t := Table{
		Title:   "Overlay " + s.PlanStart + ".." + s.PlanEnd + " (run " + s.RunID + ")",
		Headers: []string{"Stock item", "Baseline month", "Procurement month", "Baseline qty", "Weight", "Redistributed"},
	}
	for _, d := range s.Details {
		t.Rows = append(t.Rows, []string{
			d.StockItemID, entities.MonthKey(d.BaselineMonth), entities.MonthKey(d.ProcurementMonth),
			dec(d.BaselineQty), dec(d.Weight), dec(d.RedistributedQty),
		})
	}
	skipped := Table{Title: "Months without an active run", Headers: []string{"Month"}}
	for _, m := range s.Skipped {
		skipped.Rows = append(skipped.Rows, []string{m})
	}
	return []Table{t, skipped}
}

func allocationTable(title string, allocs []reconcile.Allocation) Table {
	t := Table{
		Title:   title,
		Headers: []string{"Issue", "Date", "Item text", "Batch ref", "Stock item", "Batch", "Product", "Qty", "Unit", "Note"},
	}
	for _, a := range allocs {
		t.Rows = append(t.Rows, []string{
			a.IssueID, a.IssueDate, a.RawItemText, a.RawBatchRef, a.StockItemID, a.BatchID, a.ProductID,
			dec(a.Qty), a.UnitID, a.Note,
		})
	}
	return t
}

// ReconcileTables renders a reconciliation report
func ReconcileTables(r *reconcile.Report) []Table {
	variance := Table{
		Title:   "Planned vs issued " + r.HorizonStart,
		Headers: []string{"Stock item", "Kind", "Unit", "Planned", "Issued", "Variance", "Variance %"},
	}
	for _, v := range r.Items {
		pct := ""
		if v.VariancePct != nil {
			pct = v.VariancePct.StringFixed(1)
		}
		variance.Rows = append(variance.Rows, []string{
			v.StockItemID, string(v.MaterialKind), v.UnitID, dec(v.Planned), dec(v.Issued), dec(v.Variance), pct,
		})
	}
	exceptions := Table{Title: "Exceptions", Headers: []string{"Kind", "Stock item", "Planned", "Issued", "Variance"}}
	for _, e := range r.Exceptions {
		exceptions.Rows = append(exceptions.Rows, []string{
			string(e.Kind), e.StockItemID, dec(e.Planned), dec(e.Issued), dec(e.Variance),
		})
	}
	return []Table{
		variance,
		exceptions,
		allocationTable("Matched", r.Matched),
		allocationTable("Approximate", r.Approximate),
		allocationTable("Unassigned", r.Unassigned),
		WarningsTable(r.Warnings),
	}
}

// AllocationSummaryTable renders the outcome of persisting allocations
func AllocationSummaryTable(s *dto.AllocationSummary) Table {
	return Table{
		Title:   "Allocations saved",
		Headers: []string{"Updated", "Kept confirmed", "Unchanged"},
		Rows:    [][]string{{strconv.Itoa(s.Updated), strconv.Itoa(s.Confirmed), strconv.Itoa(s.Unchanged)}},
	}
}

// ImportTable renders row counts per imported dataset
func ImportTable(counts map[string]int, order []string) Table {
	t := Table{Title: "Imported", Headers: []string{"Dataset", "Rows"}}
	for _, name := range order {
		if n, ok := counts[name]; ok {
			t.Rows = append(t.Rows, []string{name, strconv.Itoa(n)})
		}
	}
	return t
}
