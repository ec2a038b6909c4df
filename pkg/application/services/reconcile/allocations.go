package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/vsinha/mfgplan/pkg/application/dto"
	"github.com/vsinha/mfgplan/pkg/domain/entities"
	"github.com/vsinha/mfgplan/pkg/domain/repositories"
	"github.com/vsinha/mfgplan/pkg/infrastructure/config"
	"github.com/vsinha/mfgplan/pkg/infrastructure/events"
)

// PersistAllocations writes the report's proposed statuses onto the issue
// lines in one transaction. Manually confirmed lines are never touched.
func (r *Reconciler) PersistAllocations(ctx context.Context, report *Report) (*dto.AllocationSummary, error) {
	summary := &dto.AllocationSummary{}
	err := r.store.Transaction(ctx, func(tx repositories.Store) error {
		*summary = dto.AllocationSummary{}
		for _, alloc := range report.Allocations() {
			line, err := tx.GetIssue(ctx, alloc.IssueID)
			if err != nil {
				return err
			}
			if line.IsConfirmed() {
				summary.Confirmed++
				continue
			}
			if sameAllocation(line, alloc) {
				summary.Unchanged++
				continue
			}
			line.AllocationStatus = alloc.Status
			line.StockItemID = ptr(alloc.StockItemID)
			line.BatchID = ptr(alloc.BatchID)
			line.ProductID = ptr(alloc.ProductID)
			line.AllocationNote = alloc.Note
			if err := tx.UpdateAllocation(ctx, line); err != nil {
				return err
			}
			summary.Updated++
		}
		return nil
	})
	if err != nil {
		config.LogError(r.logger, moduleName, "PersistAllocations", "horizon", report.HorizonStart, err)
		return nil, err
	}

	r.publish(report.HorizonStart, events.AllocationSavedEvent, events.AllocationSaved{
		Updated: summary.Updated,
		Skipped: summary.Confirmed,
	})
	r.logger.WithFields(logrus.Fields{
		"module":    moduleName,
		"horizon":   report.HorizonStart,
		"updated":   summary.Updated,
		"confirmed": summary.Confirmed,
		"unchanged": summary.Unchanged,
	}).Info("allocations saved")
	return summary, nil
}

// Confirmation is a planner's manual allocation of an issue line
type Confirmation struct {
	IssueID string `validate:"required"`
	// StockItemID overrides the line's current item when set
	StockItemID string
	BatchID     string
	User        string `validate:"required"`
}

// ConfirmAllocation marks a line matched on a planner's word. This is the
// only way an approximate allocation becomes matched.
func (r *Reconciler) ConfirmAllocation(ctx context.Context, c Confirmation) (*entities.IssueLine, error) {
	if err := r.validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, entities.NewValidationError(c.IssueID, fmt.Errorf("confirmation requires %s", verrs[0].Field()))
		}
		return nil, entities.NewValidationError(c.IssueID, err)
	}

	var confirmed *entities.IssueLine
	err := r.store.Transaction(ctx, func(tx repositories.Store) error {
		line, err := tx.GetIssue(ctx, c.IssueID)
		if err != nil {
			return err
		}
		if c.StockItemID != "" {
			if _, err := tx.GetStockItem(ctx, c.StockItemID); err != nil {
				return entities.NewValidationError(c.IssueID, err)
			}
			line.StockItemID = ptr(c.StockItemID)
		}
		if line.StockItemID == nil || *line.StockItemID == "" {
			return entities.NewValidationError(c.IssueID, fmt.Errorf("issue line has no stock item to confirm"))
		}
		if c.BatchID != "" {
			batch, err := tx.GetBatch(ctx, c.BatchID)
			if err != nil {
				return entities.NewValidationError(c.IssueID, err)
			}
			planLine, err := tx.GetLine(ctx, batch.LineID)
			if err != nil {
				return err
			}
			line.BatchID = ptr(batch.ID)
			line.ProductID = ptr(planLine.ProductID)
		}
		line.AllocationStatus = entities.AllocationMatched
		line.ConfirmedBy = c.User
		line.AllocationNote = "confirmed by " + c.User
		if err := tx.UpdateAllocation(ctx, line); err != nil {
			return err
		}
		confirmed = line
		return nil
	})
	if err != nil {
		config.LogError(r.logger, moduleName, "ConfirmAllocation", "issue", c.IssueID, err)
		return nil, err
	}
	r.publish(c.IssueID, events.AllocationSavedEvent, events.AllocationSaved{Updated: 1})
	return confirmed, nil
}

func sameAllocation(line *entities.IssueLine, alloc Allocation) bool {
	return line.AllocationStatus == alloc.Status &&
		deref(line.StockItemID) == alloc.StockItemID &&
		deref(line.BatchID) == alloc.BatchID &&
		deref(line.ProductID) == alloc.ProductID &&
		line.AllocationNote == alloc.Note
}

func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
