package explosion

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vsinha/mfgplan/pkg/application/dto"
	"github.com/vsinha/mfgplan/pkg/domain/entities"
	"github.com/vsinha/mfgplan/pkg/domain/repositories"
	"github.com/vsinha/mfgplan/pkg/infrastructure/config"
	"github.com/vsinha/mfgplan/pkg/infrastructure/events"
)

// Service persists explosions as versioned MRP runs
type Service struct {
	store     repositories.Store
	engine    *Engine
	publisher events.Publisher
	logger    *logrus.Logger
	now       func() time.Time
}

// NewService creates an MRP run service
func NewService(store repositories.Store, publisher events.Publisher, logger *logrus.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Service{
		store:     store,
		engine:    NewEngine(store, logger),
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Engine returns the underlying explosion engine
func (s *Service) Engine() *Engine {
	return s.engine
}

// RebuildMRPMonth explodes month and stores the result as a new run. The
// run is created, finalized and activated in one transaction, so readers
// only ever see complete runs.
func (s *Service) RebuildMRPMonth(ctx context.Context, month time.Time) (*dto.MRPRunSummary, error) {
	month = entities.MonthStart(month)
	explosion, err := s.engine.Explode(ctx, month, Scope{})
	if err != nil {
		config.LogError(s.logger, moduleName, "RebuildMRPMonth", "explode", entities.MonthKey(month), err)
		return nil, err
	}
	overlay, err := s.coveringOverlay(ctx, month)
	if err != nil {
		return nil, err
	}

	now := s.now()
	scope := entities.MRPScope(month)
	run := &entities.MRPRun{
		MonthStart: month,
		Scope:      scope,
		Status:     entities.RunDraft,
		CreatedAt:  now,
	}
	if overlay != nil {
		run.OverlayRunID = &overlay.ID
	}

	err = s.store.Transaction(ctx, func(tx repositories.Store) error {
		if err := tx.CreateRun(ctx, run); err != nil {
			return err
		}
		for _, d := range explosion.Details {
			d.RunID = run.ID
		}
		if err := tx.InsertDetails(ctx, explosion.Details); err != nil {
			return err
		}
		if err := tx.FinalizeRun(ctx, run.ID, len(explosion.Details), len(explosion.Failures), now); err != nil {
			return err
		}
		return tx.Activate(ctx, scope, run.ID, now)
	})
	if err != nil {
		config.LogError(s.logger, moduleName, "RebuildMRPMonth", "persist run", scope, err)
		return nil, err
	}

	s.publish(run.ID, events.MRPRunFinalizedEvent, events.MRPRunFinalized{
		RunID:        run.ID,
		Month:        month,
		RowsInserted: len(explosion.Details),
		FailedRoots:  len(explosion.Failures),
	})
	s.publish(scope, events.RunActivatedEvent, events.RunActivated{Scope: scope, RunID: run.ID})

	totals := explosion.Totals
	if overlay != nil {
		totals, err = s.applyOverlay(ctx, month, totals, overlay.ID)
		if err != nil {
			return nil, err
		}
	}

	s.logger.WithFields(logrus.Fields{
		"module":   moduleName,
		"run":      run.ID,
		"month":    entities.MonthKey(month),
		"rows":     len(explosion.Details),
		"failures": len(explosion.Failures),
	}).Info("mrp run finalized")

	return &dto.MRPRunSummary{
		RunID:        run.ID,
		Month:        entities.MonthKey(month),
		OverlayRunID: run.OverlayRunID,
		Rows:         len(explosion.Details),
		Totals:       totals,
		Failures:     explosion.Failures,
		Warnings:     explosion.Warnings,
		FinalizedAt:  now,
	}, nil
}

// ActiveRun returns the run active for month, or entities.ErrNotFound
func (s *Service) ActiveRun(ctx context.Context, month time.Time) (*entities.MRPRun, error) {
	runID, err := s.store.ActiveRunID(ctx, entities.MRPScope(month))
	if err != nil {
		return nil, err
	}
	return s.store.GetRun(ctx, runID)
}

// ActiveTotals returns the gross totals of the month's active run, before
// any seasonal overlay
func (s *Service) ActiveTotals(ctx context.Context, month time.Time) ([]entities.RequirementTotal, error) {
	run, err := s.ActiveRun(ctx, month)
	if err != nil {
		return nil, err
	}
	details, err := s.store.ListDetails(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	return AggregateTotals(details), nil
}

// LatestTotals returns the active run's totals with the currently active
// overlay covering month applied to ProcurementQty. A month without an
// active run has no totals.
func (s *Service) LatestTotals(ctx context.Context, month time.Time) ([]entities.RequirementTotal, error) {
	month = entities.MonthStart(month)
	totals, err := s.ActiveTotals(ctx, month)
	if errors.Is(err, entities.ErrNotFound) {
		totals = nil
	} else if err != nil {
		return nil, err
	}

	overlay, err := s.coveringOverlay(ctx, month)
	if err != nil {
		return nil, err
	}
	if overlay == nil {
		return totals, nil
	}
	return s.applyOverlay(ctx, month, totals, overlay.ID)
}

// coveringOverlay returns the active overlay whose window contains month.
// When several active windows overlap the most recently activated wins.
func (s *Service) coveringOverlay(ctx context.Context, month time.Time) (*entities.OverlayRun, error) {
	pointers, err := s.store.ListActive(ctx, "overlay:")
	if err != nil {
		return nil, err
	}
	var (
		best      *entities.OverlayRun
		bestSince time.Time
	)
	for _, p := range pointers {
		run, err := s.store.GetOverlayRun(ctx, p.RunID)
		if errors.Is(err, entities.ErrNotFound) {
			config.LogWarning(s.logger, moduleName, "coveringOverlay", p.Scope, "active pointer references a missing overlay run")
			continue
		}
		if err != nil {
			return nil, err
		}
		if !run.Covers(month) {
			continue
		}
		if best == nil || p.ActivatedAt.After(bestSince) {
			best, bestSince = run, p.ActivatedAt
		}
	}
	return best, nil
}

// applyOverlay replaces ProcurementQty of seasonal items with what the
// overlay schedules for procurement in month. Items procured in month only
// because of another month's baseline are added with zero gross.
func (s *Service) applyOverlay(ctx context.Context, month time.Time, totals []entities.RequirementTotal, overlayRunID string) ([]entities.RequirementTotal, error) {
	details, err := s.store.ListOverlayDetails(ctx, overlayRunID)
	if err != nil {
		return nil, err
	}

	seasonal := make(map[string]decimal.Decimal)
	for _, d := range details {
		qty, ok := seasonal[d.StockItemID]
		if !ok {
			qty = decimal.Zero
		}
		if entities.MonthStart(d.ProcurementMonth).Equal(month) {
			qty = qty.Add(d.RedistributedQty)
		}
		seasonal[d.StockItemID] = qty
	}

	out := make([]entities.RequirementTotal, 0, len(totals))
	present := make(map[string]bool, len(totals))
	for _, t := range totals {
		if qty, ok := seasonal[t.StockItemID]; ok {
			t.ProcurementQty = qty
		}
		present[t.StockItemID] = true
		out = append(out, t)
	}
	for itemID, qty := range seasonal {
		if present[itemID] || qty.IsZero() {
			continue
		}
		item, err := s.store.GetStockItem(ctx, itemID)
		if err != nil {
			return nil, err
		}
		out = append(out, entities.RequirementTotal{
			StockItemID:    itemID,
			MaterialKind:   item.MaterialKind,
			UnitID:         item.DefaultUnitID,
			Gross:          decimal.Zero,
			Mandatory:      decimal.Zero,
			ProcurementQty: qty,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StockItemID < out[j].StockItemID })
	return out, nil
}

func (s *Service) publish(stream, eventType string, data any) {
	if err := s.publisher.AppendEvent(stream, events.NewEvent(eventType, stream, data)); err != nil {
		config.LogError(s.logger, moduleName, "publish", "event", eventType, err)
	}
}
