package repositories

import "context"

// Store bundles every repository over one connection or transaction
type Store interface {
	ItemRepository
	BOMRepository
	DemandRepository
	PlanRepository
	RunRepository
	ActivationRepository
	OverlayRepository
	IssueRepository
	ImportRepository

	// Transaction runs fn against a transactional Store. Returning an error
	// rolls back every write made through tx.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}
