package orchestration

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/mfgplan/pkg/application/services/reconcile"
	"github.com/vsinha/mfgplan/pkg/domain/entities"
	"github.com/vsinha/mfgplan/pkg/infrastructure/config"
	"github.com/vsinha/mfgplan/pkg/infrastructure/locking"
	fixtures "github.com/vsinha/mfgplan/pkg/infrastructure/testing"
)

var july = time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		JobTimeout:            time.Minute,
		Workers:               2,
		SeasonWeightTolerance: 1e-6,
		ApproxMaxDistance:     2,
	}
}

// newPlannedOrchestrator seeds the juice scenario and builds its June plan
func newPlannedOrchestrator(t *testing.T, locker locking.Locker) *PlanningOrchestrator {
	t.Helper()
	store := fixtures.NewTestStore(t)
	fixtures.BuildJuiceScenario(t, store)

	po := NewPlanningOrchestrator(store, testConfig(), locker, nil, nil)
	ctx := context.Background()
	header, err := po.Plans().CreateHeader(ctx, "Summer", fixtures.June, july)
	if err != nil {
		t.Fatalf("create header: %v", err)
	}
	summary, err := po.BuildPlan(ctx, header.ID, fixtures.June, july)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	if len(summary.Lines) != 1 {
		t.Fatalf("Expected one planned line, got %d", len(summary.Lines))
	}
	return po
}

func TestPlanningOrchestrator_RebuildMonths(t *testing.T) {
	po := newPlannedOrchestrator(t, nil)

	summary, err := po.RebuildMonths(context.Background(), fixtures.June, july)
	if err != nil {
		t.Fatalf("Failed to rebuild months: %v", err)
	}
	if len(summary.Failures) != 0 {
		t.Fatalf("Expected no failures, got %+v", summary.Failures)
	}
	if len(summary.Runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(summary.Runs))
	}
	if summary.Runs[0].Month != "2025-06" || summary.Runs[1].Month != "2025-07" {
		t.Errorf("Expected runs in month order, got %s and %s", summary.Runs[0].Month, summary.Runs[1].Month)
	}
	if summary.Runs[0].Rows != 10 {
		t.Errorf("Expected 10 June rows, got %d", summary.Runs[0].Rows)
	}
	if summary.Runs[1].Rows != 0 {
		t.Errorf("Expected an empty July run, got %d rows", summary.Runs[1].Rows)
	}

	for _, month := range []time.Time{fixtures.June, july} {
		if _, err := po.MRP().ActiveRun(context.Background(), month); err != nil {
			t.Errorf("Expected an active run for %s: %v", entities.MonthKey(month), err)
		}
	}
}

func TestPlanningOrchestrator_BusyMonthIsRecorded(t *testing.T) {
	locker := locking.NewLocalLocker()
	po := newPlannedOrchestrator(t, locker)
	ctx := context.Background()

	held, err := locker.Obtain(ctx, entities.MRPScope(july), time.Minute)
	if err != nil {
		t.Fatalf("obtain: %v", err)
	}
	defer held.Release(ctx)

	summary, err := po.RebuildMonths(ctx, fixtures.June, july)
	if err != nil {
		t.Fatalf("Failed to rebuild months: %v", err)
	}
	if len(summary.Runs) != 1 || summary.Runs[0].Month != "2025-06" {
		t.Fatalf("Expected only June to run, got %+v", summary.Runs)
	}
	if len(summary.Failures) != 1 {
		t.Fatalf("Expected one failure, got %+v", summary.Failures)
	}
	f := summary.Failures[0]
	if f.Key != "mrp:2025-07" || !strings.Contains(f.Error, ErrScopeBusy.Error()) {
		t.Errorf("Unexpected failure %+v", f)
	}

	if _, err := po.MRP().ActiveRun(ctx, july); !errors.Is(err, entities.ErrNotFound) {
		t.Errorf("Expected no July run, got %v", err)
	}
}

func TestPlanningOrchestrator_InvertedWindow(t *testing.T) {
	po := newPlannedOrchestrator(t, nil)
	_, err := po.RebuildMonths(context.Background(), july, fixtures.June)
	if !entities.IsValidation(err) {
		t.Fatalf("Expected a validation error, got %v", err)
	}
	if _, err := po.Nightly(context.Background(), 0); !entities.IsValidation(err) {
		t.Fatalf("Expected a validation error for zero months, got %v", err)
	}
}

func TestPlanningOrchestrator_ReconcileAndPersist(t *testing.T) {
	po := newPlannedOrchestrator(t, nil)
	ctx := context.Background()
	if _, err := po.RebuildMonth(ctx, fixtures.June); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	report, saved, err := po.Reconcile(ctx, fixtures.June, "", false)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if saved != nil {
		t.Errorf("Expected nothing saved without persist")
	}
	if report.MRPRunID == "" {
		t.Errorf("Expected the report to reference the active run")
	}
	// June 2025 has elapsed and nothing was issued
	if len(report.Exceptions) != 7 {
		t.Fatalf("Expected 7 exceptions, got %+v", report.Exceptions)
	}
	for _, e := range report.Exceptions {
		if e.Kind != reconcile.PlannedNotIssued {
			t.Errorf("Expected %s to be plannedNotIssued, got %s", e.StockItemID, e.Kind)
		}
	}

	_, saved, err = po.Reconcile(ctx, fixtures.June, "", true)
	if err != nil {
		t.Fatalf("reconcile with persist: %v", err)
	}
	if saved == nil || saved.Updated != 0 {
		t.Errorf("Expected an empty allocation summary, got %+v", saved)
	}
}

func TestScheduler_NightlyRebuild(t *testing.T) {
	po := newPlannedOrchestrator(t, nil)
	po.now = func() time.Time { return time.Date(2025, time.June, 10, 2, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	s := NewScheduler(ctx, po)
	if _, err := s.AddNightlyRebuild("not a schedule", 1); err == nil {
		t.Error("Expected an invalid schedule to be rejected")
	}
	if _, err := s.AddNightlyRebuild("0 2 * * *", 0); err == nil {
		t.Error("Expected zero months to be rejected")
	}
	if _, err := s.AddNightlyRebuild("0 2 * * *", 2); err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(s.Entries()) != 1 {
		t.Fatalf("Expected one entry, got %d", len(s.Entries()))
	}

	s.nightlyJob(2)()

	run, err := po.MRP().ActiveRun(ctx, fixtures.June)
	if err != nil {
		t.Fatalf("Expected the nightly job to activate June: %v", err)
	}
	if run.RowsInserted != 10 {
		t.Errorf("Expected 10 rows, got %d", run.RowsInserted)
	}
	if _, err := po.MRP().ActiveRun(ctx, july); err != nil {
		t.Errorf("Expected the nightly job to activate July: %v", err)
	}
}

func TestPlanningOrchestrator_LineJobsUseHeaderScope(t *testing.T) {
	locker := locking.NewLocalLocker()
	po := newPlannedOrchestrator(t, locker)
	ctx := context.Background()

	lines, err := po.store.ListLinesForMonth(ctx, fixtures.June)
	if err != nil || len(lines) != 1 {
		t.Fatalf("Expected one June line, got %d (%v)", len(lines), err)
	}
	line := lines[0]

	seeded, err := po.SeedBatches(ctx, line.ID, []decimal.Decimal{fixtures.Dec("400"), fixtures.Dec("400")})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(seeded.BatchSizes) != 2 || !seeded.ResidualQty.Equal(fixtures.Dec("250")) {
		t.Errorf("Expected two seeded batches and 250 residual, got %v / %s", seeded.BatchSizes, seeded.ResidualQty)
	}

	held, err := locker.Obtain(ctx, PlanScope(line.HeaderID), time.Minute)
	if err != nil {
		t.Fatalf("obtain: %v", err)
	}
	if _, err := po.RebuildLine(ctx, line.ID); !errors.Is(err, ErrScopeBusy) {
		t.Errorf("Expected the header scope to be busy, got %v", err)
	}
	held.Release(ctx)

	rebuilt, err := po.RebuildLine(ctx, line.ID)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if len(rebuilt.BatchSizes) != 3 {
		t.Errorf("Expected the rebuild to restore three batches, got %v", rebuilt.BatchSizes)
	}

	if _, err := po.RebuildLine(ctx, "missing"); !errors.Is(err, entities.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for an unknown line, got %v", err)
	}
}
