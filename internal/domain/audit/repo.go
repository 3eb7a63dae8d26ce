package audit

import "context"

// Store persists entries. Insert must only write inside the caller's open
// transaction so the entry commits or rolls back with the mutation.
type Store interface {
	Insert(ctx context.Context, e *Entry) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Entry, int, error)
}
