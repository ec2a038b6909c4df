package batchplan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vsinha/mfgplan/pkg/application/dto"
	"github.com/vsinha/mfgplan/pkg/domain/entities"
	"github.com/vsinha/mfgplan/pkg/domain/repositories"
	"github.com/vsinha/mfgplan/pkg/domain/services"
	"github.com/vsinha/mfgplan/pkg/infrastructure/config"
	"github.com/vsinha/mfgplan/pkg/infrastructure/events"
)

const moduleName = "batchplan"

// Builder turns final make quantities into persisted batch plans. Every
// plan line is written in its own transaction.
type Builder struct {
	store     repositories.Store
	publisher events.Publisher
	logger    *logrus.Logger
	now       func() time.Time
}

// NewBuilder creates a batch plan builder
func NewBuilder(store repositories.Store, publisher events.Publisher, logger *logrus.Logger) *Builder {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Builder{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateHeader opens a plan window covering the months from..to
func (b *Builder) CreateHeader(ctx context.Context, title string, from, to time.Time) (*entities.BatchPlanHeader, error) {
	from, to = entities.MonthStart(from), entities.MonthStart(to)
	if to.Before(from) {
		return nil, entities.NewValidationError(title, fmt.Errorf("plan window ends before it starts"))
	}
	header := &entities.BatchPlanHeader{Title: title, WindowStart: from, WindowEnd: to}
	if err := b.store.CreatePlanHeader(ctx, header); err != nil {
		return nil, err
	}
	return header, nil
}

// BuildPlan builds or rebuilds one line per product-month demand in
// [from, to], which must lie inside the header's window. A failing key is
// logged and summarised and the rest continue.
func (b *Builder) BuildPlan(ctx context.Context, headerID string, from, to time.Time) (*dto.BuildPlanSummary, error) {
	header, err := b.store.GetPlanHeader(ctx, headerID)
	if err != nil {
		return nil, err
	}
	from, to = entities.MonthStart(from), entities.MonthStart(to)
	windowStart, windowEnd := entities.MonthStart(header.WindowStart), entities.MonthStart(header.WindowEnd)
	switch {
	case to.Before(from):
		return nil, entities.NewValidationError(header.ID, fmt.Errorf("plan range ends before it starts"))
	case from.Before(windowStart) || to.After(windowEnd):
		return nil, entities.NewValidationError(header.ID, fmt.Errorf("range %s..%s is outside the plan window %s..%s",
			entities.MonthKey(from), entities.MonthKey(to), entities.MonthKey(windowStart), entities.MonthKey(windowEnd)))
	}
	demands, err := b.store.ListMakeDemands(ctx, from, to)
	if err != nil {
		return nil, err
	}

	summary := &dto.BuildPlanSummary{
		HeaderID: header.ID,
		From:     entities.MonthKey(from),
		To:       entities.MonthKey(to),
		Lines:    make([]dto.PlanLineSummary, 0, len(demands)),
		Failures: make([]dto.Failure, 0),
	}
	inserted, rebuilt, batches := 0, 0, 0
	for _, demand := range demands {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := demand.ProductID + "@" + entities.MonthKey(demand.MonthStart)

		var line *written
		var existed bool
		err := b.store.Transaction(ctx, func(tx repositories.Store) error {
			current, err := tx.FindLine(ctx, header.ID, demand.ProductID, demand.MonthStart)
			switch {
			case errors.Is(err, entities.ErrNotFound):
				current = &entities.BatchPlanLine{
					HeaderID:   header.ID,
					ProductID:  demand.ProductID,
					MonthStart: entities.MonthStart(demand.MonthStart),
				}
			case err != nil:
				return err
			default:
				existed = true
			}
			line, err = b.planLine(ctx, tx, current, demand)
			return err
		})
		if err != nil {
			config.LogError(b.logger, moduleName, "BuildPlan", "plan line", key, err)
			summary.Failures = append(summary.Failures, dto.NewFailure(key, err))
			continue
		}
		if existed {
			rebuilt++
		} else {
			inserted++
		}
		b.publish(line.event.LineID, events.PlanLineRebuiltEvent, line.event)
		batches += line.event.BatchesWritten
		summary.Lines = append(summary.Lines, line.summary)
	}

	summary.LinesInserted, summary.LinesRebuilt, summary.BatchesInserted = inserted, rebuilt, batches

	b.publish(header.ID, events.PlanBuiltEvent, events.PlanBuilt{
		HeaderID:        header.ID,
		LinesInserted:   inserted,
		LinesRebuilt:    rebuilt,
		BatchesInserted: batches,
		Failures:        len(summary.Failures),
	})
	b.logger.WithFields(logrus.Fields{
		"module":   moduleName,
		"header":   header.ID,
		"inserted": inserted,
		"rebuilt":  rebuilt,
		"batches":  batches,
		"failures": len(summary.Failures),
	}).Info("batch plan built")
	return summary, nil
}

// RebuildLine re-derives a line from current demand and rules. Linked
// batches keep their size and position and are flagged when the new plan
// disagrees with them.
func (b *Builder) RebuildLine(ctx context.Context, lineID string) (*dto.PlanLineSummary, error) {
	var result *written
	err := b.store.Transaction(ctx, func(tx repositories.Store) error {
		line, err := tx.GetLine(ctx, lineID)
		if err != nil {
			return err
		}
		demand, err := tx.GetMakeDemand(ctx, line.ProductID, line.MonthStart)
		if errors.Is(err, entities.ErrNotFound) {
			demand = &entities.ProductMonthDemand{ProductID: line.ProductID, MonthStart: line.MonthStart, FinalMakeQty: line.FinalMakeQty}
		} else if err != nil {
			return err
		}
		result, err = b.planLine(ctx, tx, line, demand)
		return err
	})
	if err != nil {
		config.LogError(b.logger, moduleName, "RebuildLine", "plan line", lineID, err)
		return nil, err
	}
	b.publish(lineID, events.PlanLineRebuiltEvent, result.event)
	return &result.summary, nil
}

// SeedManualBatches replaces a line's unlinked batches with planner-given
// sizes. Each size must lie within the line's bounds and the batches may
// not exceed the final make quantity.
func (b *Builder) SeedManualBatches(ctx context.Context, lineID string, sizes []decimal.Decimal) (*dto.PlanLineSummary, error) {
	var result *written
	err := b.store.Transaction(ctx, func(tx repositories.Store) error {
		line, err := tx.GetLine(ctx, lineID)
		if err != nil {
			return err
		}
		for _, size := range sizes {
			if size.LessThan(line.MinBatch) || size.GreaterThan(line.MaxBatch) {
				return entities.NewValidationError(lineID, fmt.Errorf("%w: batch %s outside [%s, %s]",
					entities.ErrInvalidBatchBounds, size, line.MinBatch, line.MaxBatch))
			}
		}
		line.SourceRule = entities.SourceManual
		result, err = b.writeBatches(ctx, tx, line, sizes, entities.SourceManual)
		if err != nil {
			return err
		}
		if line.ResidualQty.IsNegative() {
			return entities.NewValidationError(lineID, fmt.Errorf("batches total more than the final make quantity %s", line.FinalMakeQty))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	b.publish(lineID, events.PlanLineRebuiltEvent, result.event)
	return &result.summary, nil
}

// MapBatchToRecord links a batch to a manufacturing record. Linking the
// same record again is a no-op; a link is never moved.
func (b *Builder) MapBatchToRecord(ctx context.Context, batchID, recordRef string) (*entities.Batch, error) {
	recordRef = strings.TrimSpace(recordRef)
	if recordRef == "" {
		return nil, entities.NewValidationError(batchID, fmt.Errorf("record reference cannot be empty"))
	}

	var linked *entities.Batch
	changed := false
	err := b.store.Transaction(ctx, func(tx repositories.Store) error {
		batch, err := tx.GetBatch(ctx, batchID)
		if err != nil {
			return err
		}
		if batch.IsLinked() {
			if *batch.RecordRef == recordRef {
				linked = batch
				return nil
			}
			return entities.NewConsistencyError(batchID, fmt.Errorf("%w to %s", entities.ErrBatchAlreadyLinked, *batch.RecordRef))
		}
		other, err := tx.FindBatchByRecord(ctx, recordRef)
		if err == nil && other.ID != batch.ID {
			return entities.NewConsistencyError(recordRef, fmt.Errorf("%w: %s", entities.ErrRecordAlreadyLinked, other.ID))
		}
		if err != nil && !errors.Is(err, entities.ErrNotFound) {
			return err
		}

		now := b.now()
		batch.RecordRef = &recordRef
		batch.LinkedAt = &now
		if err := tx.UpdateBatch(ctx, batch); err != nil {
			return err
		}
		linked, changed = batch, true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		b.publish(batchID, events.BatchLinkedEvent, events.BatchLinked{BatchID: batchID, RecordRef: recordRef})
	}
	return linked, nil
}

// planLine resolves the effective make quantity, rule and RM BOM of a
// product-month and rewrites the line's batches
func (b *Builder) planLine(ctx context.Context, tx repositories.Store, line *entities.BatchPlanLine, demand *entities.ProductMonthDemand) (*written, error) {
	key := line.ProductID + "@" + entities.MonthKey(line.MonthStart)

	qty, source := demand.FinalMakeQty, entities.SourceSystem
	override, err := tx.GetMakeOverride(ctx, line.ProductID, line.MonthStart)
	switch {
	case err == nil:
		qty, source = override.FinalMakeQty, entities.SourceOverride
	case !errors.Is(err, entities.ErrNotFound):
		return nil, err
	}
	if qty.IsNegative() {
		return nil, entities.NewValidationError(key, fmt.Errorf("final make quantity cannot be negative, got %s", qty))
	}

	rule, err := tx.EffectiveRule(ctx, line.ProductID, line.MonthStart)
	if errors.Is(err, entities.ErrNotFound) {
		return nil, entities.NewValidationError(key, fmt.Errorf("%w: no batch size rule in effect", entities.ErrInvalidBatchBounds))
	}
	if err != nil {
		return nil, err
	}
	if err := rule.Validate(); err != nil {
		return nil, entities.NewValidationError(key, err)
	}

	bomHeader, err := tx.FindHeaderByOwner(ctx, entities.BOMKindRM, line.ProductID)
	if errors.Is(err, entities.ErrNotFound) {
		return nil, entities.NewValidationError(key, fmt.Errorf("%w: product has no RM BOM", entities.ErrMissingBOM))
	}
	if err != nil {
		return nil, err
	}
	bomLines, err := tx.GetLines(ctx, bomHeader.ID)
	if err != nil {
		return nil, err
	}
	if _, err := services.ResolveBOM(bomHeader, bomLines, nil); err != nil {
		return nil, err
	}

	split, err := services.ComputeBatches(qty, rule.MinBatch, rule.MaxBatch, rule.PreferredBatch)
	if err != nil {
		return nil, entities.NewValidationError(key, err)
	}
	if rule.NudgeThresholdPct.IsPositive() {
		split = services.NudgeResidual(split, rule.PreferredBatch, rule.MaxBatch, rule.NudgeThresholdPct)
	}

	line.FinalMakeQty = qty
	line.SourceRule = source
	line.RuleID = rule.ID
	line.MinBatch = rule.MinBatch
	line.MaxBatch = rule.MaxBatch
	line.PreferredBatch = rule.PreferredBatch
	line.BOMHeaderID = bomHeader.ID
	return b.writeBatches(ctx, tx, line, split.Sizes, source)
}

// written is a rewritten line and the event to publish once it commits
type written struct {
	summary dto.PlanLineSummary
	event   events.PlanLineRebuilt
}

// writeBatches assigns planned sizes to sequence positions 1..n. Unlinked
// batches are deleted and reinserted; a linked batch keeps its actual size
// and records the planned size of its position. The residual is whatever
// the final batches leave of the final make quantity.
func (b *Builder) writeBatches(ctx context.Context, tx repositories.Store, line *entities.BatchPlanLine, planned []decimal.Decimal, source entities.SourceRule) (*written, error) {
	existing := line.Batches
	if line.ID != "" && existing == nil {
		rows, err := tx.ListBatches(ctx, line.ID)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			existing = append(existing, *r)
		}
	}

	linked := make(map[int]*entities.Batch)
	var drop []string
	for i := range existing {
		batch := existing[i]
		if batch.IsLinked() {
			linked[batch.SeqNo] = &batch
		} else {
			drop = append(drop, batch.ID)
		}
	}

	line.Batches = nil
	if err := tx.SaveLine(ctx, line); err != nil {
		return nil, err
	}
	if err := tx.DeleteBatches(ctx, drop); err != nil {
		return nil, err
	}

	var (
		inserts    []*entities.Batch
		mismatches []string
		warnings   []entities.DataQualityWarning
		final      = make([]entities.Batch, 0, len(planned)+len(linked))
	)
	positions := len(planned)
	for seq := range linked {
		if seq > positions {
			positions = seq
		}
	}
	for seq := 1; seq <= positions; seq++ {
		plannedSize := decimal.Zero
		if seq <= len(planned) {
			plannedSize = planned[seq-1]
		}
		if kept, ok := linked[seq]; ok {
			kept.PlannedSize = plannedSize
			kept.SizeMismatch = !kept.Size.Equal(plannedSize)
			if err := tx.UpdateBatch(ctx, kept); err != nil {
				return nil, err
			}
			if kept.SizeMismatch {
				mismatches = append(mismatches, kept.ID)
				warnings = append(warnings, entities.DataQualityWarning{
					Kind:    entities.WarningBatchSizeMismatch,
					Key:     kept.ID,
					Message: fmt.Sprintf("linked batch %d is %s, plan wants %s", seq, kept.Size, plannedSize),
				})
			}
			final = append(final, *kept)
			continue
		}
		if seq > len(planned) {
			continue
		}
		inserts = append(inserts, &entities.Batch{
			LineID:      line.ID,
			SeqNo:       seq,
			Size:        plannedSize,
			PlannedSize: plannedSize,
			SourceRule:  source,
		})
	}
	if err := tx.InsertBatches(ctx, inserts); err != nil {
		return nil, err
	}
	for _, ins := range inserts {
		final = append(final, *ins)
	}

	batched := decimal.Zero
	for _, f := range final {
		batched = batched.Add(f.Size)
	}
	line.ResidualQty = line.FinalMakeQty.Sub(batched)
	if line.ResidualQty.IsNegative() {
		warnings = append(warnings, entities.DataQualityWarning{
			Kind:    entities.WarningNegativeResidual,
			Key:     line.ID,
			Message: fmt.Sprintf("linked batches total %s, above final make quantity %s", batched, line.FinalMakeQty),
		})
	}
	if err := tx.SaveLine(ctx, line); err != nil {
		return nil, err
	}
	for _, w := range warnings {
		config.LogWarning(b.logger, moduleName, "writeBatches", w.Key, w.Message)
	}

	sortBatches(final)
	line.Batches = final
	sizes := make([]decimal.Decimal, len(final))
	for i, f := range final {
		sizes[i] = f.Size
	}

	return &written{
		event: events.PlanLineRebuilt{
			LineID:         line.ID,
			BatchesKept:    len(linked),
			BatchesWritten: len(inserts),
			Mismatches:     len(mismatches),
		},
		summary: dto.PlanLineSummary{
			LineID:       line.ID,
			ProductID:    line.ProductID,
			Month:        entities.MonthKey(line.MonthStart),
			FinalMakeQty: line.FinalMakeQty,
			SourceRule:   line.SourceRule,
			BatchSizes:   sizes,
			ResidualQty:  line.ResidualQty,
			Mismatches:   mismatches,
			Warnings:     warnings,
		},
	}, nil
}

func sortBatches(batches []entities.Batch) {
	sort.Slice(batches, func(i, j int) bool { return batches[i].SeqNo < batches[j].SeqNo })
}

func (b *Builder) publish(streamID, eventType string, data any) {
	if err := b.publisher.AppendEvent(streamID, events.NewEvent(eventType, streamID, data)); err != nil {
		config.LogError(b.logger, moduleName, "publish", eventType, streamID, err)
	}
}
