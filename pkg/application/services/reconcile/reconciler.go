package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vsinha/mfgplan/pkg/application/services/explosion"
	"github.com/vsinha/mfgplan/pkg/domain/entities"
	"github.com/vsinha/mfgplan/pkg/domain/repositories"
	"github.com/vsinha/mfgplan/pkg/domain/services"
	"github.com/vsinha/mfgplan/pkg/infrastructure/config"
	"github.com/vsinha/mfgplan/pkg/infrastructure/events"
)

const moduleName = "reconcile"

var hundred = decimal.NewFromInt(100)

// Options tune matching and exception thresholds
type Options struct {
	// ApproxMaxDistance is the Levenshtein radius for approximate item matches
	ApproxMaxDistance int
	// OverIssueTolerancePct is how far above plan issues may go before overIssued
	OverIssueTolerancePct decimal.Decimal
}

// DefaultOptions matches within distance 2 and flags any over-issue
func DefaultOptions() Options {
	return Options{ApproxMaxDistance: 2, OverIssueTolerancePct: decimal.Zero}
}

// OptionsFromConfig reads the reconciliation settings of cfg
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{ApproxMaxDistance: cfg.ApproxMaxDistance, OverIssueTolerancePct: cfg.OverIssueTolerance()}
}

// Reconciler attributes issue lines to planned requirements. Reconcile
// only reads; allocations are written by PersistAllocations and
// ConfirmAllocation.
type Reconciler struct {
	store     repositories.Store
	mrp       *explosion.Service
	publisher events.Publisher
	logger    *logrus.Logger
	validate  *validator.Validate
	opts      Options
	now       func() time.Time
}

// NewReconciler creates a reconciler comparing issues with mrp's active runs
func NewReconciler(store repositories.Store, mrp *explosion.Service, publisher events.Publisher, logger *logrus.Logger, opts Options) *Reconciler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Reconciler{
		store:     store,
		mrp:       mrp,
		publisher: publisher,
		logger:    logger,
		validate:  validator.New(),
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the clock deciding whether a horizon has elapsed
func (r *Reconciler) SetClock(now func() time.Time) {
	r.now = now
}

// Reconcile matches the issue lines of the horizon month against known
// items and linked batches, and compares issued with planned quantities
// per stock item. An empty kind covers every material kind.
func (r *Reconciler) Reconcile(ctx context.Context, horizonStart time.Time, kind entities.MaterialKind) (*Report, error) {
	horizon := entities.MonthStart(horizonStart)
	end := horizon.AddDate(0, 1, 0)
	if kind != "" {
		parsed, err := entities.ParseMaterialKind(string(kind))
		if err != nil {
			return nil, entities.NewValidationError(string(kind), err)
		}
		kind = parsed
	}

	items, err := r.store.ListStockItems(ctx)
	if err != nil {
		return nil, err
	}
	itemByID := make(map[string]*entities.StockItem, len(items))
	for _, item := range items {
		itemByID[item.ID] = item
	}
	aliases, err := r.store.ListAliases(ctx)
	if err != nil {
		return nil, err
	}
	linked, err := r.store.ListLinkedBatches(ctx)
	if err != nil {
		return nil, err
	}
	planLines, err := r.linkedLines(ctx, linked)
	if err != nil {
		return nil, err
	}
	converter, err := r.converter(ctx)
	if err != nil {
		return nil, err
	}
	issues, err := r.store.ListIssues(ctx, horizon, end)
	if err != nil {
		return nil, err
	}

	report := &Report{
		HorizonStart: entities.MonthKey(horizon),
		MaterialKind: kind,
		Elapsed:      !r.now().Before(end),
		Matched:      make([]Allocation, 0),
		Approximate:  make([]Allocation, 0),
		Unassigned:   make([]Allocation, 0),
		Items:        make([]ItemVariance, 0),
		Exceptions:   make([]Exception, 0),
		Warnings:     make([]entities.DataQualityWarning, 0),
	}

	planned, err := r.planned(ctx, horizon, report)
	if err != nil {
		return nil, err
	}

	lineMonths := make(map[string]string, len(planLines))
	for id, pl := range planLines {
		lineMonths[id] = entities.MonthKey(pl.MonthStart)
	}
	m := newMatcher(items, aliases, linked, lineMonths, r.opts.ApproxMaxDistance)
	issued := make(map[string]decimal.Decimal)
	for _, line := range issues {
		alloc := r.allocate(m, line, planLines)
		var item *entities.StockItem
		switch {
		case alloc.StockItemID != "":
			item = itemByID[alloc.StockItemID]
			if kind != "" && item != nil && item.MaterialKind != kind {
				continue
			}
		case kind != "":
			// No item means no kind to filter on
			report.Unresolved++
			continue
		}

		switch alloc.Status {
		case entities.AllocationMatched:
			report.Matched = append(report.Matched, alloc)
		case entities.AllocationApproximate:
			report.Approximate = append(report.Approximate, alloc)
		default:
			report.Unassigned = append(report.Unassigned, alloc)
			report.Warnings = append(report.Warnings, entities.DataQualityWarning{
				Kind:    entities.WarningUnmatchedIssueLine,
				Key:     line.ID,
				Message: alloc.Note,
			})
			continue
		}

		if alloc.StockItemID == "" {
			report.Warnings = append(report.Warnings, entities.DataQualityWarning{
				Kind:    entities.WarningUnmappedStockItem,
				Key:     line.ID,
				Message: fmt.Sprintf("issue %s matched batch %s but %q names no stock item; left out of item variance", line.ID, alloc.BatchID, line.RawItemText),
			})
			continue
		}
		if item == nil {
			report.Warnings = append(report.Warnings, entities.DataQualityWarning{
				Kind:    entities.WarningUnmappedStockItem,
				Key:     line.ID,
				Message: fmt.Sprintf("issue %s is allocated to unknown stock item %s", line.ID, alloc.StockItemID),
			})
			continue
		}
		qty, err := converter.Convert(line.Qty, line.UnitID, item.DefaultUnitID)
		if err != nil {
			report.Warnings = append(report.Warnings, entities.DataQualityWarning{
				Kind:    entities.WarningUnitConversion,
				Key:     line.ID,
				Message: fmt.Sprintf("cannot convert %s %s to %s for %s", line.Qty, line.UnitID, item.DefaultUnitID, item.ID),
			})
			continue
		}
		sum, ok := issued[item.ID]
		if !ok {
			sum = decimal.Zero
		}
		issued[item.ID] = sum.Add(qty)
	}

	r.compare(report, kind, planned, issued, itemByID)

	total := decimal.Zero
	for _, v := range report.Items {
		total = total.Add(v.Issued)
	}
	r.publish(report.HorizonStart, events.ReconciliationEvent, events.ReconciliationCompleted{
		Horizon:    horizon,
		Lines:      len(report.Matched) + len(report.Approximate) + len(report.Unassigned),
		Exceptions: len(report.Exceptions),
		Issued:     total,
	})
	r.logger.WithFields(logrus.Fields{
		"module":      moduleName,
		"horizon":     report.HorizonStart,
		"matched":     len(report.Matched),
		"approximate": len(report.Approximate),
		"unassigned":  len(report.Unassigned),
		"exceptions":  len(report.Exceptions),
	}).Info("reconciliation completed")
	return report, nil
}

// allocate proposes an allocation for one line. Manually confirmed lines
// keep their stored allocation. An exact record ref match is enough for
// matched even when the item text resolves to nothing.
func (r *Reconciler) allocate(m *matcher, line *entities.IssueLine, planLines map[string]*entities.BatchPlanLine) Allocation {
	alloc := Allocation{
		IssueID:     line.ID,
		IssueDate:   line.IssueDate.UTC().Format("2006-01-02"),
		RawBatchRef: line.RawBatchRef,
		RawItemText: line.RawItemText,
		Qty:         line.Qty,
		UnitID:      line.UnitID,
	}
	if line.IsConfirmed() {
		alloc.Status = entities.AllocationMatched
		alloc.StockItemID = deref(line.StockItemID)
		alloc.BatchID = deref(line.BatchID)
		alloc.ProductID = deref(line.ProductID)
		alloc.Confirmed = true
		alloc.Note = "confirmed by " + line.ConfirmedBy
		return alloc
	}

	im := m.matchItem(line.RawItemText)
	alloc.Status = im.status
	alloc.StockItemID = im.itemID
	alloc.Candidates = im.candidates
	notes := []string{}
	if im.note != "" {
		notes = append(notes, im.note)
	}

	bm := m.matchBatch(line.RawBatchRef, line.IssueDate)
	if bm.batch != nil {
		alloc.BatchID = bm.batch.ID
		if pl := planLines[bm.batch.LineID]; pl != nil {
			alloc.ProductID = pl.ProductID
		}
		switch {
		case len(bm.candidates) > 1:
			alloc.Status = entities.AllocationApproximate
		case alloc.Status == entities.AllocationUnassigned:
			alloc.Status = entities.AllocationMatched
		}
	}
	if bm.note != "" {
		notes = append(notes, bm.note)
	}
	alloc.Note = strings.Join(notes, "; ")
	return alloc
}

// linkedLines loads the plan line of every linked batch, keyed by line id
func (r *Reconciler) linkedLines(ctx context.Context, linked []*entities.Batch) (map[string]*entities.BatchPlanLine, error) {
	lines := make(map[string]*entities.BatchPlanLine)
	missing := make(map[string]bool)
	for _, b := range linked {
		if lines[b.LineID] != nil || missing[b.LineID] {
			continue
		}
		line, err := r.store.GetLine(ctx, b.LineID)
		if errors.Is(err, entities.ErrNotFound) {
			missing[b.LineID] = true
			continue
		}
		if err != nil {
			return nil, err
		}
		lines[b.LineID] = line
	}
	return lines, nil
}

// planned returns the gross totals of the horizon's active run
func (r *Reconciler) planned(ctx context.Context, horizon time.Time, report *Report) (map[string]entities.RequirementTotal, error) {
	planned := make(map[string]entities.RequirementTotal)
	run, err := r.mrp.ActiveRun(ctx, horizon)
	if errors.Is(err, entities.ErrNotFound) {
		config.LogWarning(r.logger, moduleName, "Reconcile", report.HorizonStart, "no active mrp run; every issue counts as unplanned")
		return planned, nil
	}
	if err != nil {
		return nil, err
	}
	report.MRPRunID = run.ID
	details, err := r.store.ListDetails(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	for _, total := range explosion.AggregateTotals(details) {
		planned[total.StockItemID] = total
	}
	return planned, nil
}

// compare fills the per-item variances and exceptions in item order
func (r *Reconciler) compare(report *Report, kind entities.MaterialKind, planned map[string]entities.RequirementTotal, issued map[string]decimal.Decimal, items map[string]*entities.StockItem) {
	ids := make([]string, 0, len(planned)+len(issued))
	seen := make(map[string]bool)
	for id, total := range planned {
		if kind != "" && total.MaterialKind != kind {
			continue
		}
		ids = append(ids, id)
		seen[id] = true
	}
	for id := range issued {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	for _, id := range ids {
		v := ItemVariance{StockItemID: id, Planned: decimal.Zero, Issued: decimal.Zero}
		if total, ok := planned[id]; ok {
			v.MaterialKind, v.UnitID, v.Planned = total.MaterialKind, total.UnitID, total.Gross
		} else if item, ok := items[id]; ok {
			v.MaterialKind, v.UnitID = item.MaterialKind, item.DefaultUnitID
		}
		if qty, ok := issued[id]; ok {
			v.Issued = qty
		}
		v.Variance = v.Issued.Sub(v.Planned)
		v.VariancePct = VariancePct(v.Planned, v.Issued)
		report.Items = append(report.Items, v)

		if exceptionKind, ok := Classify(v.Planned, v.Issued, r.opts.OverIssueTolerancePct, report.Elapsed); ok {
			report.Exceptions = append(report.Exceptions, Exception{Kind: exceptionKind, ItemVariance: v})
		}
	}
}

// Classify decides whether planned and issued quantities of an item
// disagree. plannedNotIssued only applies once the horizon has elapsed.
func Classify(planned, issued, tolerancePct decimal.Decimal, elapsed bool) (ExceptionKind, bool) {
	switch {
	case issued.IsPositive() && planned.IsZero():
		return NoPlanButIssued, true
	case planned.IsPositive() && issued.GreaterThan(planned.Mul(decimal.NewFromInt(1).Add(tolerancePct.Div(hundred)))):
		return OverIssued, true
	case planned.IsPositive() && issued.IsZero() && elapsed:
		return PlannedNotIssued, true
	}
	return "", false
}

// VariancePct is (issued - planned) / planned as a percentage rounded to
// one decimal, or nil when nothing was planned
func VariancePct(planned, issued decimal.Decimal) *decimal.Decimal {
	if !planned.IsPositive() {
		return nil
	}
	pct := issued.Sub(planned).Div(planned).Mul(hundred).Round(1)
	return &pct
}

func (r *Reconciler) converter(ctx context.Context) (*services.UomConverter, error) {
	units, err := r.store.ListUnits(ctx)
	if err != nil {
		return nil, err
	}
	conversions, err := r.store.ListConversions(ctx)
	if err != nil {
		return nil, err
	}
	return services.NewUomConverter(units, conversions)
}

func (r *Reconciler) publish(stream, eventType string, data any) {
	if err := r.publisher.AppendEvent(stream, events.NewEvent(eventType, stream, data)); err != nil {
		config.LogError(r.logger, moduleName, "publish", "event", eventType, err)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
