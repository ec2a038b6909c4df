package reconcile_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/mfgplan/pkg/application/services/batchplan"
	"github.com/vsinha/mfgplan/pkg/application/services/explosion"
	"github.com/vsinha/mfgplan/pkg/application/services/reconcile"
	"github.com/vsinha/mfgplan/pkg/domain/entities"
	"github.com/vsinha/mfgplan/pkg/infrastructure/events"
	"github.com/vsinha/mfgplan/pkg/infrastructure/repositories/gormstore"
	fixtures "github.com/vsinha/mfgplan/pkg/infrastructure/testing"
)

var (
	midJune = time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)
	midJuly = time.Date(2025, time.July, 15, 0, 0, 0, 0, time.UTC)
)

type harness struct {
	store      *gormstore.Store
	events     *events.InMemoryEventStore
	reconciler *reconcile.Reconciler
	batchID    string
}

func issue(id string, day int, ref, text, qty, unit string) *entities.IssueLine {
	return &entities.IssueLine{
		ID:               id,
		IssueDate:        time.Date(2025, time.June, day, 0, 0, 0, 0, time.UTC),
		RawBatchRef:      ref,
		RawItemText:      text,
		Qty:              fixtures.Dec(qty),
		UnitID:           unit,
		AllocationStatus: entities.AllocationUnassigned,
	}
}

// newHarness plans and explodes June, links the first batch to MR-001 and
// seeds six issue lines
func newHarness(t *testing.T, clock time.Time) *harness {
	t.Helper()
	ctx := context.Background()
	store := fixtures.NewTestStore(t)
	fixtures.BuildJuiceScenario(t, store)

	builder := batchplan.NewBuilder(store, nil, nil)
	header, err := builder.CreateHeader(ctx, "June", fixtures.June, fixtures.June)
	require.NoError(t, err)
	_, err = builder.BuildPlan(ctx, header.ID, fixtures.June, fixtures.June)
	require.NoError(t, err)
	lines, err := store.ListLinesForMonth(ctx, fixtures.June)
	require.NoError(t, err)
	require.NotEmpty(t, lines[0].Batches)
	batchID := lines[0].Batches[0].ID
	_, err = builder.MapBatchToRecord(ctx, batchID, "MR-001")
	require.NoError(t, err)

	mrp := explosion.NewService(store, nil, nil)
	_, err = mrp.RebuildMRPMonth(ctx, fixtures.June)
	require.NoError(t, err)

	fixtures.Seed(t, store, []*entities.IssueLine{
		issue("ISS-1", 3, "", "Refined Sugar", "40", "kg"),
		issue("ISS-2", 4, "", "rm-pulp", "400000", "g"),
		issue("ISS-3", 5, "", "Mango Pulpp", "5", "kg"),
		issue("ISS-4", 6, "", "Unobtainium", "1", "kg"),
		issue("ISS-5", 7, "mr-001", "Water", "100", "l"),
		issue("ISS-6", 8, "", "Sugar Syrup", "10", "kg"),
		issue("ISS-J", 30, "", "Sugar", "999", "kg"),
	})
	// Outside the horizon
	require.NoError(t, store.Upsert(ctx, []*entities.IssueLine{{
		ID: "ISS-JULY", IssueDate: midJuly, RawItemText: "Sugar", Qty: fixtures.Dec("1"), UnitID: "kg",
		AllocationStatus: entities.AllocationUnassigned,
	}}))

	eventStore := events.NewInMemoryEventStore(nil)
	r := reconcile.NewReconciler(store, mrp, eventStore, nil, reconcile.DefaultOptions())
	r.SetClock(func() time.Time { return clock })
	return &harness{store: store, events: eventStore, reconciler: r, batchID: batchID}
}

func ids(allocs []reconcile.Allocation) []string {
	out := make([]string, len(allocs))
	for i, a := range allocs {
		out[i] = a.IssueID
	}
	return out
}

func exceptionKinds(report *reconcile.Report) map[string]reconcile.ExceptionKind {
	out := make(map[string]reconcile.ExceptionKind, len(report.Exceptions))
	for _, e := range report.Exceptions {
		out[e.StockItemID] = e.Kind
	}
	return out
}

func TestReconcile_Allocations(t *testing.T) {
	h := newHarness(t, midJune)

	report, err := h.reconciler.Reconcile(context.Background(), fixtures.June, "")
	require.NoError(t, err)
	assert.Equal(t, "2025-06", report.HorizonStart)
	assert.False(t, report.Elapsed)
	assert.NotEmpty(t, report.MRPRunID)

	assert.Equal(t, []string{"ISS-1", "ISS-2", "ISS-5", "ISS-6", "ISS-J"}, ids(report.Matched))
	assert.Equal(t, []string{"ISS-3"}, ids(report.Approximate))
	assert.Equal(t, []string{"ISS-4"}, ids(report.Unassigned))

	assert.Equal(t, "PULP", report.Approximate[0].StockItemID)
	assert.Equal(t, []string{"PULP"}, report.Approximate[0].Candidates)

	water := report.Matched[2]
	assert.Equal(t, "WATER", water.StockItemID)
	assert.Equal(t, h.batchID, water.BatchID)
	assert.Equal(t, "P-JUICE", water.ProductID)

	require.Len(t, report.Warnings, 1)
	assert.Equal(t, entities.WarningUnmatchedIssueLine, report.Warnings[0].Kind)
	assert.Equal(t, "ISS-4", report.Warnings[0].Key)
}

func TestReconcile_Exceptions(t *testing.T) {
	h := newHarness(t, midJune)
	report, err := h.reconciler.Reconcile(context.Background(), fixtures.June, "")
	require.NoError(t, err)

	require.Len(t, report.Items, 8)
	byItem := make(map[string]reconcile.ItemVariance)
	for _, v := range report.Items {
		byItem[v.StockItemID] = v
	}

	// 400000 g + 5 kg approximate, against 315 kg planned
	pulp := byItem["PULP"]
	assert.True(t, pulp.Issued.Equal(fixtures.Dec("405")), "issued %s", pulp.Issued)
	assert.True(t, pulp.Variance.Equal(fixtures.Dec("90")))
	require.NotNil(t, pulp.VariancePct)
	assert.True(t, pulp.VariancePct.Equal(fixtures.Dec("28.6")), "pct %s", pulp.VariancePct)

	syrup := byItem["SYRUP"]
	assert.True(t, syrup.Planned.IsZero())
	assert.Nil(t, syrup.VariancePct)

	// SUGAR is 40 + 999 against 126
	assert.Equal(t, map[string]reconcile.ExceptionKind{
		"PULP":  reconcile.OverIssued,
		"SUGAR": reconcile.OverIssued,
		"SYRUP": reconcile.NoPlanButIssued,
	}, exceptionKinds(report))
}

func TestReconcile_PlannedNotIssuedAfterHorizon(t *testing.T) {
	h := newHarness(t, midJuly)
	report, err := h.reconciler.Reconcile(context.Background(), fixtures.June, "")
	require.NoError(t, err)
	assert.True(t, report.Elapsed)

	assert.Equal(t, map[string]reconcile.ExceptionKind{
		"BOTTLE": reconcile.PlannedNotIssued,
		"CAP":    reconcile.PlannedNotIssued,
		"LABEL":  reconcile.PlannedNotIssued,
		"PULP":   reconcile.OverIssued,
		"SLEEVE": reconcile.PlannedNotIssued,
		"SUGAR":  reconcile.OverIssued,
		"SYRUP":  reconcile.NoPlanButIssued,
	}, exceptionKinds(report))

	var previous string
	for _, e := range report.Exceptions {
		assert.Less(t, previous, e.StockItemID)
		previous = e.StockItemID
	}
}

func TestReconcile_MaterialKindFilter(t *testing.T) {
	h := newHarness(t, midJuly)
	report, err := h.reconciler.Reconcile(context.Background(), fixtures.June, entities.MaterialRM)
	require.NoError(t, err)

	assert.Equal(t, []string{"ISS-1", "ISS-2", "ISS-5", "ISS-J"}, ids(report.Matched))
	assert.Empty(t, report.Unassigned, "a line without an item has no kind")
	assert.Empty(t, report.Warnings)
	assert.Equal(t, 1, report.Unresolved)
	for _, v := range report.Items {
		assert.Equal(t, entities.MaterialRM, v.MaterialKind)
	}

	_, err = h.reconciler.Reconcile(context.Background(), fixtures.June, "XX")
	assert.True(t, entities.IsValidation(err))
}

func TestReconcile_RecordRefAloneMatchesBatch(t *testing.T) {
	h := newHarness(t, midJune)
	ctx := context.Background()
	fixtures.Seed(t, h.store, []*entities.IssueLine{issue("ISS-B", 9, "MR-001", "zz###qq", "10", "kg")})

	report, err := h.reconciler.Reconcile(ctx, fixtures.June, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"ISS-1", "ISS-2", "ISS-5", "ISS-6", "ISS-B", "ISS-J"}, ids(report.Matched))
	assert.Equal(t, []string{"ISS-4"}, ids(report.Unassigned))

	byRef := report.Matched[4]
	assert.Equal(t, h.batchID, byRef.BatchID)
	assert.Equal(t, "P-JUICE", byRef.ProductID)
	assert.Empty(t, byRef.StockItemID)

	require.Len(t, report.Warnings, 2)
	assert.Equal(t, entities.WarningUnmappedStockItem, report.Warnings[1].Kind)
	assert.Equal(t, "ISS-B", report.Warnings[1].Key)

	// No item, so no issued quantity moves
	baseline := newHarness(t, midJune)
	want, err := baseline.reconciler.Reconcile(ctx, fixtures.June, "")
	require.NoError(t, err)
	assert.Equal(t, exceptionKinds(want), exceptionKinds(report))

	filtered, err := h.reconciler.Reconcile(ctx, fixtures.June, entities.MaterialRM)
	require.NoError(t, err)
	assert.NotContains(t, ids(filtered.Matched), "ISS-B")
	assert.Equal(t, 2, filtered.Unresolved)

	saved, err := h.reconciler.PersistAllocations(ctx, report)
	require.NoError(t, err)
	assert.Equal(t, 8, saved.Updated)
	line, err := h.store.GetIssue(ctx, "ISS-B")
	require.NoError(t, err)
	assert.Equal(t, entities.AllocationMatched, line.AllocationStatus)
	require.NotNil(t, line.BatchID)
	assert.Equal(t, h.batchID, *line.BatchID)
	assert.Nil(t, line.StockItemID)
}

func TestReconcile_IsDeterministic(t *testing.T) {
	h := newHarness(t, midJuly)
	ctx := context.Background()

	first, err := h.reconciler.Reconcile(ctx, fixtures.June, "")
	require.NoError(t, err)
	second, err := h.reconciler.Reconcile(ctx, fixtures.June, "")
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	// Reconciling never writes allocations
	line, err := h.store.GetIssue(ctx, "ISS-1")
	require.NoError(t, err)
	assert.Equal(t, entities.AllocationUnassigned, line.AllocationStatus)
	assert.Nil(t, line.StockItemID)
}

func TestPersistAllocations_KeepsConfirmedLines(t *testing.T) {
	h := newHarness(t, midJune)
	ctx := context.Background()

	report, err := h.reconciler.Reconcile(ctx, fixtures.June, "")
	require.NoError(t, err)
	saved, err := h.reconciler.PersistAllocations(ctx, report)
	require.NoError(t, err)
	assert.Equal(t, 7, saved.Updated)

	approx, err := h.store.GetIssue(ctx, "ISS-3")
	require.NoError(t, err)
	assert.Equal(t, entities.AllocationApproximate, approx.AllocationStatus)
	require.NotNil(t, approx.StockItemID)
	assert.Equal(t, "PULP", *approx.StockItemID)

	again, err := h.reconciler.PersistAllocations(ctx, report)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Updated)
	assert.Equal(t, 7, again.Unchanged)

	confirmed, err := h.reconciler.ConfirmAllocation(ctx, reconcile.Confirmation{
		IssueID: "ISS-3",
		BatchID: h.batchID,
		User:    "asha",
	})
	require.NoError(t, err)
	assert.Equal(t, entities.AllocationMatched, confirmed.AllocationStatus)
	require.NotNil(t, confirmed.ProductID)
	assert.Equal(t, "P-JUICE", *confirmed.ProductID)

	report, err = h.reconciler.Reconcile(ctx, fixtures.June, "")
	require.NoError(t, err)
	assert.Empty(t, report.Approximate)
	assert.Contains(t, ids(report.Matched), "ISS-3")

	saved, err = h.reconciler.PersistAllocations(ctx, report)
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Confirmed)

	stored, err := h.store.GetIssue(ctx, "ISS-3")
	require.NoError(t, err)
	assert.Equal(t, "asha", stored.ConfirmedBy)
	assert.Equal(t, h.batchID, *stored.BatchID)

	all, err := h.events.ReadAllEvents(0)
	require.NoError(t, err)
	assert.NotEmpty(t, all)
}

func TestConfirmAllocation_Validation(t *testing.T) {
	h := newHarness(t, midJune)
	ctx := context.Background()

	_, err := h.reconciler.ConfirmAllocation(ctx, reconcile.Confirmation{IssueID: "ISS-4"})
	assert.True(t, entities.IsValidation(err))

	// ISS-4 was never matched to an item
	_, err = h.reconciler.ConfirmAllocation(ctx, reconcile.Confirmation{IssueID: "ISS-4", User: "asha"})
	assert.True(t, entities.IsValidation(err))

	line, err := h.reconciler.ConfirmAllocation(ctx, reconcile.Confirmation{IssueID: "ISS-4", StockItemID: "SUGAR", User: "asha"})
	require.NoError(t, err)
	assert.Equal(t, "SUGAR", *line.StockItemID)

	_, err = h.reconciler.ConfirmAllocation(ctx, reconcile.Confirmation{IssueID: "ISS-4", StockItemID: "NOPE", User: "asha"})
	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		planned   string
		issued    string
		tolerance string
		elapsed   bool
		want      reconcile.ExceptionKind
		flagged   bool
	}{
		{"over_issued", "30", "40", "0", false, reconcile.OverIssued, true},
		{"within_tolerance", "30", "40", "50", false, "", false},
		{"no_plan", "0", "5", "0", false, reconcile.NoPlanButIssued, true},
		{"not_issued_open_horizon", "30", "0", "0", false, "", false},
		{"not_issued_elapsed", "30", "0", "0", true, reconcile.PlannedNotIssued, true},
		{"on_plan", "30", "30", "0", true, "", false},
		{"nothing", "0", "0", "0", true, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, flagged := reconcile.Classify(fixtures.Dec(tt.planned), fixtures.Dec(tt.issued), fixtures.Dec(tt.tolerance), tt.elapsed)
			assert.Equal(t, tt.flagged, flagged)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestVariancePct(t *testing.T) {
	pct := reconcile.VariancePct(fixtures.Dec("30"), fixtures.Dec("40"))
	require.NotNil(t, pct)
	assert.True(t, pct.Equal(fixtures.Dec("33.3")), "got %s", pct)
	assert.Nil(t, reconcile.VariancePct(decimal.Zero, fixtures.Dec("40")))
}
