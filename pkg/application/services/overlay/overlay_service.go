package overlay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vsinha/mfgplan/pkg/application/dto"
	"github.com/vsinha/mfgplan/pkg/application/services/explosion"
	"github.com/vsinha/mfgplan/pkg/domain/entities"
	"github.com/vsinha/mfgplan/pkg/domain/repositories"
	"github.com/vsinha/mfgplan/pkg/domain/services"
	"github.com/vsinha/mfgplan/pkg/infrastructure/config"
	"github.com/vsinha/mfgplan/pkg/infrastructure/events"
)

const moduleName = "overlay"

// Service builds and activates seasonal overlay runs
type Service struct {
	store     repositories.Store
	mrp       *explosion.Service
	publisher events.Publisher
	logger    *logrus.Logger
	tolerance decimal.Decimal
	now       func() time.Time
}

// NewService creates an overlay service reading baselines through mrp
func NewService(store repositories.Store, mrp *explosion.Service, publisher events.Publisher, logger *logrus.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Service{
		store:     store,
		mrp:       mrp,
		publisher: publisher,
		logger:    logger,
		tolerance: services.DefaultWeightTolerance,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetWeightTolerance changes the accepted distance of a weight sum from 1
func (s *Service) SetWeightTolerance(tolerance decimal.Decimal) {
	s.tolerance = tolerance
}

// BuildSeasonOverlay redistributes the baseline requirement of every
// seasonal item in [planStart, planEnd] and stores the result as a new
// overlay run. Months without an active MRP run are skipped. An invalid
// profile aborts the whole build before anything is written.
func (s *Service) BuildSeasonOverlay(ctx context.Context, planStart, planEnd time.Time, activate bool) (*dto.OverlaySummary, error) {
	planStart, planEnd = entities.MonthStart(planStart), entities.MonthStart(planEnd)
	if planEnd.Before(planStart) {
		return nil, entities.NewValidationError(entities.OverlayScope(planStart, planEnd), fmt.Errorf("plan window ends before it starts"))
	}

	seasonal, err := s.seasonalItems(ctx)
	if err != nil {
		config.LogError(s.logger, moduleName, "BuildSeasonOverlay", "season profiles", entities.OverlayScope(planStart, planEnd), err)
		return nil, err
	}

	summary := &dto.OverlaySummary{
		PlanStart: entities.MonthKey(planStart),
		PlanEnd:   entities.MonthKey(planEnd),
	}
	var details []*entities.OverlayDetail
	for _, month := range entities.MonthsBetween(planStart, planEnd) {
		totals, err := s.mrp.ActiveTotals(ctx, month)
		if errors.Is(err, entities.ErrNotFound) {
			summary.Skipped = append(summary.Skipped, entities.MonthKey(month))
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, total := range totals {
			profile, ok := seasonal[total.StockItemID]
			if !ok || !total.Gross.IsPositive() {
				continue
			}
			for _, share := range services.Redistribute(month, total.Gross, profile.Weights) {
				details = append(details, &entities.OverlayDetail{
					StockItemID:      total.StockItemID,
					BaselineMonth:    month,
					ProcurementMonth: share.ProcurementMonth,
					BaselineQty:      total.Gross,
					Weight:           share.Weight,
					RedistributedQty: share.Qty,
				})
			}
		}
	}

	now := s.now()
	scope := entities.OverlayScope(planStart, planEnd)
	run := &entities.OverlayRun{PlanStart: planStart, PlanEnd: planEnd, CreatedAt: now}
	err = s.store.Transaction(ctx, func(tx repositories.Store) error {
		if err := tx.CreateOverlayRun(ctx, run, details); err != nil {
			return err
		}
		if !activate {
			return nil
		}
		return tx.Activate(ctx, scope, run.ID, now)
	})
	if err != nil {
		config.LogError(s.logger, moduleName, "BuildSeasonOverlay", "persist overlay", scope, err)
		return nil, err
	}

	s.publish(run.ID, events.OverlayBuiltEvent, events.OverlayBuilt{RunID: run.ID, DetailRows: len(details), Activated: activate})
	if activate {
		s.publish(scope, events.RunActivatedEvent, events.RunActivated{Scope: scope, RunID: run.ID})
	}
	s.logger.WithFields(logrus.Fields{
		"module":    moduleName,
		"run":       run.ID,
		"scope":     scope,
		"rows":      len(details),
		"activated": activate,
	}).Info("season overlay built")

	summary.RunID = run.ID
	summary.Rows = len(details)
	summary.Activated = activate
	summary.Details = make([]entities.OverlayDetail, len(details))
	for i, d := range details {
		summary.Details[i] = *d
	}
	return summary, nil
}

// Activate points the run's window at runID, replacing the previous run
func (s *Service) Activate(ctx context.Context, runID string) error {
	run, err := s.store.GetOverlayRun(ctx, runID)
	if err != nil {
		return err
	}
	scope := entities.OverlayScope(run.PlanStart, run.PlanEnd)
	if err := s.store.Activate(ctx, scope, run.ID, s.now()); err != nil {
		config.LogError(s.logger, moduleName, "Activate", "overlay", scope, err)
		return err
	}
	s.publish(scope, events.RunActivatedEvent, events.RunActivated{Scope: scope, RunID: run.ID})
	return nil
}

// seasonalItems maps every item with a season profile to its validated profile
func (s *Service) seasonalItems(ctx context.Context) (map[string]*entities.SeasonProfile, error) {
	profiles, err := s.store.ListSeasonProfiles(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*entities.SeasonProfile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}

	items, err := s.store.ListStockItems(ctx)
	if err != nil {
		return nil, err
	}
	validated := make(map[string]bool)
	seasonal := make(map[string]*entities.SeasonProfile)
	for _, item := range items {
		if !item.IsSeasonal() {
			continue
		}
		profile, ok := byID[*item.SeasonProfileID]
		if !ok {
			return nil, entities.NewValidationError(item.ID,
				fmt.Errorf("%w: profile %s not found", entities.ErrInvalidSeasonWeights, *item.SeasonProfileID))
		}
		if !validated[profile.ID] {
			if err := services.ValidateSeasonWeights(profile, s.tolerance); err != nil {
				return nil, err
			}
			validated[profile.ID] = true
		}
		seasonal[item.ID] = profile
	}
	return seasonal, nil
}

func (s *Service) publish(stream, eventType string, data any) {
	if err := s.publisher.AppendEvent(stream, events.NewEvent(eventType, stream, data)); err != nil {
		config.LogError(s.logger, moduleName, "publish", "event", eventType, err)
	}
}
