package submission

import "context"

// Store holds records for the process lifetime.
type Store interface {
	// Save inserts or replaces a record by id.
	Save(ctx context.Context, rec Record) error
	// Get returns sentinel.ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (Record, error)
	// List returns every record, newest submission first.
	List(ctx context.Context) ([]Record, error)
}
