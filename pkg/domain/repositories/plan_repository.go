package repositories

import (
	"context"
	"time"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
)

// PlanRepository persists batch plans
type PlanRepository interface {
	CreatePlanHeader(ctx context.Context, header *entities.BatchPlanHeader) error
	GetPlanHeader(ctx context.Context, id string) (*entities.BatchPlanHeader, error)
	// EffectiveRule returns the rule with the latest EffectiveFrom not after asOf.
	EffectiveRule(ctx context.Context, productID string, asOf time.Time) (*entities.BatchSizeRule, error)
	FindLine(ctx context.Context, headerID, productID string, month time.Time) (*entities.BatchPlanLine, error)
	GetLine(ctx context.Context, id string) (*entities.BatchPlanLine, error)
	SaveLine(ctx context.Context, line *entities.BatchPlanLine) error
	// ListLinesForMonth returns every plan line of the month with its batches.
	ListLinesForMonth(ctx context.Context, month time.Time) ([]*entities.BatchPlanLine, error)
	// ListBatches returns the line's batches ordered by sequence.
	ListBatches(ctx context.Context, lineID string) ([]*entities.Batch, error)
	GetBatch(ctx context.Context, id string) (*entities.Batch, error)
	FindBatchByRecord(ctx context.Context, recordRef string) (*entities.Batch, error)
	ListLinkedBatches(ctx context.Context) ([]*entities.Batch, error)
	InsertBatches(ctx context.Context, batches []*entities.Batch) error
	UpdateBatch(ctx context.Context, batch *entities.Batch) error
	DeleteBatches(ctx context.Context, ids []string) error
}
