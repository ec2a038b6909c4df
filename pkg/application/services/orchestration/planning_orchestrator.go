package orchestration

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vsinha/mfgplan/pkg/application/dto"
	"github.com/vsinha/mfgplan/pkg/application/services/batchplan"
	"github.com/vsinha/mfgplan/pkg/application/services/explosion"
	"github.com/vsinha/mfgplan/pkg/application/services/overlay"
	"github.com/vsinha/mfgplan/pkg/application/services/reconcile"
	"github.com/vsinha/mfgplan/pkg/domain/entities"
	"github.com/vsinha/mfgplan/pkg/domain/repositories"
	"github.com/vsinha/mfgplan/pkg/infrastructure/config"
	"github.com/vsinha/mfgplan/pkg/infrastructure/events"
	"github.com/vsinha/mfgplan/pkg/infrastructure/locking"
)

// PlanScope is the job scope of building or rebuilding a plan header
func PlanScope(headerID string) string {
	return "plan:" + headerID
}

// monthAfter reports whether from's month is later than to's
func monthAfter(from, to time.Time) bool {
	return entities.MonthStart(from).After(entities.MonthStart(to))
}

// PlanningOrchestrator coordinates the planning services. Every write job
// runs under its scope lock so two rebuilds of the same month never
// interleave.
type PlanningOrchestrator struct {
	store      repositories.Store
	runner     *Runner
	plans      *batchplan.Builder
	mrp        *explosion.Service
	overlays   *overlay.Service
	reconciler *reconcile.Reconciler
	workers    int
	logger     *logrus.Logger
	now        func() time.Time
}

// NewPlanningOrchestrator wires the planning services over one store
func NewPlanningOrchestrator(store repositories.Store, cfg *config.Config, locker locking.Locker, publisher events.Publisher, logger *logrus.Logger) *PlanningOrchestrator {
	if logger == nil {
		logger = config.GetLogger()
	}
	mrp := explosion.NewService(store, publisher, logger)
	overlays := overlay.NewService(store, mrp, publisher, logger)
	overlays.SetWeightTolerance(cfg.WeightTolerance())

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &PlanningOrchestrator{
		store:      store,
		runner:     NewRunner(locker, cfg.JobTimeout, publisher, logger),
		plans:      batchplan.NewBuilder(store, publisher, logger),
		mrp:        mrp,
		overlays:   overlays,
		reconciler: reconcile.NewReconciler(store, mrp, publisher, logger, reconcile.OptionsFromConfig(cfg)),
		workers:    workers,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Plans returns the batch plan builder
func (po *PlanningOrchestrator) Plans() *batchplan.Builder { return po.plans }

// MRP returns the requirement explosion service
func (po *PlanningOrchestrator) MRP() *explosion.Service { return po.mrp }

// Overlays returns the season overlay service
func (po *PlanningOrchestrator) Overlays() *overlay.Service { return po.overlays }

// Reconciler returns the allocation reconciler
func (po *PlanningOrchestrator) Reconciler() *reconcile.Reconciler { return po.reconciler }

// BuildPlan builds the plan window of headerID under the plan scope
func (po *PlanningOrchestrator) BuildPlan(ctx context.Context, headerID string, from, to time.Time) (*dto.BuildPlanSummary, error) {
	var summary *dto.BuildPlanSummary
	err := po.runner.Run(ctx, PlanScope(headerID), func(ctx context.Context) error {
		var err error
		summary, err = po.plans.BuildPlan(ctx, headerID, from, to)
		return err
	})
	return summary, err
}

// RebuildLine rebuilds one plan line under its header's scope
func (po *PlanningOrchestrator) RebuildLine(ctx context.Context, lineID string) (*dto.PlanLineSummary, error) {
	line, err := po.store.GetLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	var summary *dto.PlanLineSummary
	err = po.runner.Run(ctx, PlanScope(line.HeaderID), func(ctx context.Context) error {
		var err error
		summary, err = po.plans.RebuildLine(ctx, lineID)
		return err
	})
	return summary, err
}

// SeedBatches replaces a line's batches with planner-entered sizes under
// its header's scope
func (po *PlanningOrchestrator) SeedBatches(ctx context.Context, lineID string, sizes []decimal.Decimal) (*dto.PlanLineSummary, error) {
	line, err := po.store.GetLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	var summary *dto.PlanLineSummary
	err = po.runner.Run(ctx, PlanScope(line.HeaderID), func(ctx context.Context) error {
		var err error
		summary, err = po.plans.SeedManualBatches(ctx, lineID, sizes)
		return err
	})
	return summary, err
}

// RebuildMonth explodes and activates one month under the mrp scope
func (po *PlanningOrchestrator) RebuildMonth(ctx context.Context, month time.Time) (*dto.MRPRunSummary, error) {
	var summary *dto.MRPRunSummary
	err := po.runner.Run(ctx, entities.MRPScope(month), func(ctx context.Context) error {
		var err error
		summary, err = po.mrp.RebuildMRPMonth(ctx, month)
		return err
	})
	return summary, err
}

// MonthsSummary is the outcome of rebuilding several months
type MonthsSummary struct {
	Runs     []*dto.MRPRunSummary `json:"runs"`
	Failures []dto.Failure        `json:"failures"`
}

// RebuildMonths rebuilds every month of [from, to] in parallel, bounded
// by the configured worker count. A failed month is recorded and does not
// stop the others.
func (po *PlanningOrchestrator) RebuildMonths(ctx context.Context, from, to time.Time) (*MonthsSummary, error) {
	if monthAfter(from, to) {
		return nil, entities.NewValidationError("months", fmt.Errorf("window %s..%s is inverted", entities.MonthKey(from), entities.MonthKey(to)))
	}
	months := entities.MonthsBetween(from, to)

	runs := make([]*dto.MRPRunSummary, len(months))
	failures := make([]*dto.Failure, len(months))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(po.workers)
	for i, month := range months {
		i, month := i, month
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			summary, err := po.RebuildMonth(gctx, month)
			if err != nil {
				f := dto.NewFailure(entities.MRPScope(month), err)
				failures[i] = &f
				return nil
			}
			runs[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &MonthsSummary{Runs: make([]*dto.MRPRunSummary, 0, len(months)), Failures: make([]dto.Failure, 0)}
	for i := range months {
		if runs[i] != nil {
			out.Runs = append(out.Runs, runs[i])
		}
		if failures[i] != nil {
			out.Failures = append(out.Failures, *failures[i])
		}
	}
	sort.SliceStable(out.Failures, func(i, j int) bool { return out.Failures[i].Key < out.Failures[j].Key })

	po.logger.WithFields(logrus.Fields{
		"module":   moduleName,
		"from":     entities.MonthKey(from),
		"to":       entities.MonthKey(to),
		"runs":     len(out.Runs),
		"failures": len(out.Failures),
	}).Info("months rebuilt")
	return out, nil
}

// BuildOverlay builds a season overlay under the overlay scope of its window
func (po *PlanningOrchestrator) BuildOverlay(ctx context.Context, planStart, planEnd time.Time, activate bool) (*dto.OverlaySummary, error) {
	var summary *dto.OverlaySummary
	err := po.runner.Run(ctx, entities.OverlayScope(planStart, planEnd), func(ctx context.Context) error {
		var err error
		summary, err = po.overlays.BuildSeasonOverlay(ctx, planStart, planEnd, activate)
		return err
	})
	return summary, err
}

// Reconcile reconciles a horizon month and optionally persists the
// proposed allocations under the horizon's reconcile scope
func (po *PlanningOrchestrator) Reconcile(ctx context.Context, horizon time.Time, kind entities.MaterialKind, persist bool) (*reconcile.Report, *dto.AllocationSummary, error) {
	var (
		report *reconcile.Report
		saved  *dto.AllocationSummary
	)
	err := po.runner.Run(ctx, "reconcile:"+entities.MonthKey(horizon), func(ctx context.Context) error {
		var err error
		report, err = po.reconciler.Reconcile(ctx, horizon, kind)
		if err != nil || !persist {
			return err
		}
		saved, err = po.reconciler.PersistAllocations(ctx, report)
		return err
	})
	return report, saved, err
}

// Nightly rebuilds the current month and the following months-1 months
func (po *PlanningOrchestrator) Nightly(ctx context.Context, months int) (*MonthsSummary, error) {
	if months < 1 {
		return nil, entities.NewValidationError("months", fmt.Errorf("nightly rebuild needs at least one month, got %d", months))
	}
	from := entities.MonthStart(po.now())
	return po.RebuildMonths(ctx, from, from.AddDate(0, months-1, 0))
}
