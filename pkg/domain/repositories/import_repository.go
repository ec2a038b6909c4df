package repositories

import "context"

// ImportRepository bulk-loads typed rows produced by external collaborators
// (master data exports, demand numbers, issue lines).
type ImportRepository interface {
	// Upsert inserts rows, a slice of entity pointers. Rows colliding on
	// conflictColumns, or on the primary key when none are given, are
	// overwritten.
	Upsert(ctx context.Context, rows any, conflictColumns ...string) error
	// InsertMissing inserts rows whose primary key is not stored yet and
	// leaves existing rows untouched.
	InsertMissing(ctx context.Context, rows any) error
}
