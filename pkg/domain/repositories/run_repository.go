package repositories

import (
	"context"
	"time"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
)

// RunRepository persists append-only MRP runs
type RunRepository interface {
	CreateRun(ctx context.Context, run *entities.MRPRun) error
	InsertDetails(ctx context.Context, details []*entities.RequirementDetail) error
	// FinalizeRun marks a draft run finalized; finalized runs are immutable.
	FinalizeRun(ctx context.Context, runID string, rows, failed int, at time.Time) error
	GetRun(ctx context.Context, id string) (*entities.MRPRun, error)
	// ListDetails returns the run's details with lineage, ordered by Seq.
	ListDetails(ctx context.Context, runID string) ([]*entities.RequirementDetail, error)
}

// ActivationRepository centralises the "active run" pointers of all
// versioned outputs.
type ActivationRepository interface {
	// Activate points scope at runID, replacing any previous pointer.
	Activate(ctx context.Context, scope, runID string, at time.Time) error
	// ActiveRunID returns the run active for scope, or entities.ErrNotFound.
	ActiveRunID(ctx context.Context, scope string) (string, error)
	ListActive(ctx context.Context, scopePrefix string) ([]*entities.ActiveRunPointer, error)
}

// OverlayRepository persists seasonal profiles and overlay runs
type OverlayRepository interface {
	ListSeasonProfiles(ctx context.Context) ([]*entities.SeasonProfile, error)
	CreateOverlayRun(ctx context.Context, run *entities.OverlayRun, details []*entities.OverlayDetail) error
	GetOverlayRun(ctx context.Context, id string) (*entities.OverlayRun, error)
	ListOverlayDetails(ctx context.Context, runID string) ([]*entities.OverlayDetail, error)
}
