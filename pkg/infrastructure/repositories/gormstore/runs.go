package gormstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
)

func (s *Store) CreateRun(ctx context.Context, run *entities.MRPRun) error {
	if run.Status == "" {
		run.Status = entities.RunDraft
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to create mrp run: %w", err)
	}
	return nil
}

func (s *Store) InsertDetails(ctx context.Context, details []*entities.RequirementDetail) error {
	if len(details) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).CreateInBatches(details, insertBatchSize).Error; err != nil {
		return fmt.Errorf("failed to insert requirement details: %w", err)
	}
	return nil
}

func (s *Store) FinalizeRun(ctx context.Context, runID string, rows, failed int, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&entities.MRPRun{}).
		Where("id = ? AND status = ?", runID, entities.RunDraft).
		Updates(map[string]any{
			"status":        entities.RunFinalized,
			"rows_inserted": rows,
			"failed_roots":  failed,
			"finalized_at":  at,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to finalize run %s: %w", runID, res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetRun(ctx, runID); err != nil {
			return err
		}
		return entities.NewConsistencyError(runID, entities.ErrRunFinalized)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*entities.MRPRun, error) {
	var r entities.MRPRun
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "mrp run", id)
	}
	return &r, nil
}

func (s *Store) ListDetails(ctx context.Context, runID string) ([]*entities.RequirementDetail, error) {
	var details []*entities.RequirementDetail
	err := s.db.WithContext(ctx).
		Preload("Lineage", func(db *gorm.DB) *gorm.DB { return db.Order("level") }).
		Where("run_id = ?", runID).
		Order("seq").
		Find(&details).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list details of %s: %w", runID, err)
	}
	return details, nil
}

func (s *Store) Activate(ctx context.Context, scope, runID string, at time.Time) error {
	pointer := &entities.ActiveRunPointer{Scope: scope, RunID: runID, ActivatedAt: at}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "scope"}},
			DoUpdates: clause.AssignmentColumns([]string{"run_id", "activated_at"}),
		}).
		Create(pointer).Error
	if err != nil {
		return fmt.Errorf("failed to activate %s on %s: %w", runID, scope, err)
	}
	return nil
}

func (s *Store) ActiveRunID(ctx context.Context, scope string) (string, error) {
	var p entities.ActiveRunPointer
	if err := s.db.WithContext(ctx).First(&p, "scope = ?", scope).Error; err != nil {
		return "", notFound(err, "active run for", scope)
	}
	return p.RunID, nil
}

func (s *Store) ListActive(ctx context.Context, scopePrefix string) ([]*entities.ActiveRunPointer, error) {
	var pointers []*entities.ActiveRunPointer
	err := s.db.WithContext(ctx).
		Where("scope LIKE ?", scopePrefix+"%").
		Order("scope").
		Find(&pointers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active pointers: %w", err)
	}
	return pointers, nil
}

func (s *Store) ListSeasonProfiles(ctx context.Context) ([]*entities.SeasonProfile, error) {
	var profiles []*entities.SeasonProfile
	err := s.db.WithContext(ctx).
		Preload("Weights", func(db *gorm.DB) *gorm.DB { return db.Order("procurement_month") }).
		Order("id").
		Find(&profiles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list season profiles: %w", err)
	}
	return profiles, nil
}

func (s *Store) CreateOverlayRun(ctx context.Context, run *entities.OverlayRun, details []*entities.OverlayDetail) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		run.DetailRows = len(details)
		if err := tx.Create(run).Error; err != nil {
			return fmt.Errorf("failed to create overlay run: %w", err)
		}
		for _, d := range details {
			d.RunID = run.ID
		}
		if len(details) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(details, insertBatchSize).Error; err != nil {
			return fmt.Errorf("failed to insert overlay details: %w", err)
		}
		return nil
	})
}

func (s *Store) GetOverlayRun(ctx context.Context, id string) (*entities.OverlayRun, error) {
	var r entities.OverlayRun
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "overlay run", id)
	}
	return &r, nil
}

func (s *Store) ListOverlayDetails(ctx context.Context, runID string) ([]*entities.OverlayDetail, error) {
	var details []*entities.OverlayDetail
	err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("stock_item_id, baseline_month, procurement_month").
		Find(&details).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list overlay details of %s: %w", runID, err)
	}
	return details, nil
}
