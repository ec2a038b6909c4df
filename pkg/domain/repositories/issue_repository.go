package repositories

import (
	"context"
	"time"

	"github.com/vsinha/mfgplan/pkg/domain/entities"
)

// IssueRepository provides access to externally ingested issue lines
type IssueRepository interface {
	// ListIssues returns lines with from <= issue_date < to, ordered by date then id.
	ListIssues(ctx context.Context, from, to time.Time) ([]*entities.IssueLine, error)
	GetIssue(ctx context.Context, id string) (*entities.IssueLine, error)
	UpdateAllocation(ctx context.Context, line *entities.IssueLine) error
}
