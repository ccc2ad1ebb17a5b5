package ports

import (
	"context"

	"wedding-backend/domain/core/entities"
	"wedding-backend/domain/keys"
)

// Item is one stored row.
type Item = entities.Item

// Patch is a set of attribute updates. A nil value removes the attribute.
type Patch = map[string]interface{}

// QueryInput selects rows by partition and optional sort key condition, on
// the table or on a secondary index. Index reads may lag behind writes.
type QueryInput struct {
	Index          *keys.Index
	PartitionKey   string
	SortKeyPrefix  string
	SortKeyBetween *[2]string // inclusive; ignored when SortKeyPrefix is set
	Descending     bool
	Limit          int // 0 means all matching rows
	ConsistentRead bool
}

// PutOptions controls conditional creation.
type PutOptions struct {
	IfNotExists bool
}

// CounterIncrement describes an atomic, conditional +1 on a usage counter.
// The increment applies only when every condition holds at write time:
//   - the row exists and each RequireTrue attribute is true
//   - Now lies inside the window attributes, when present
//   - Counter < Limit
//   - Token is not yet in TokenSet
type CounterIncrement struct {
	Counter     string
	Limit       string
	Token       string
	TokenSet    string
	RequireTrue []string
	WindowFrom  string
	WindowUntil string
	Now         string
}

// CounterResult reports the outcome of IncrementCounter. Item is the row
// after the increment, or the current row when it was not applied.
type CounterResult struct {
	Item     Item
	Applied  bool
	Replayed bool // Token had already been recorded; nothing changed
}

// Store is the storage gateway over the single table.
//
// Errors are pkg/errors AppErrors: NotFound for a missing row, Conflict for a
// failed create or counter condition, VersionMismatch for a lost optimistic
// lock, Timeout when the outcome of a write is unknown, and Unavailable for
// throttling or other transient failures.
type Store interface {
	// GetItem is a strongly consistent primary key read.
	GetItem(ctx context.Context, key keys.Key) (Item, error)

	// Query returns matching rows in sort key order.
	Query(ctx context.Context, in QueryInput) ([]Item, error)

	// PutItem writes a full row, optionally only when no row holds its key.
	PutItem(ctx context.Context, item Item, opts PutOptions) error

	// UpdateItem applies patch and increments Version. With expectedVersion
	// set the update only succeeds when the stored Version matches. Returns
	// the row after the update.
	UpdateItem(ctx context.Context, key keys.Key, patch Patch, expectedVersion *int) (Item, error)

	// IncrementCounter applies in as one conditional update.
	IncrementCounter(ctx context.Context, key keys.Key, in CounterIncrement) (CounterResult, error)

	// ReleaseCounter undoes an applied increment: Counter -1 and Token
	// removed from TokenSet, only while TokenSet still holds Token. Reports
	// false when there was nothing to release.
	ReleaseCounter(ctx context.Context, key keys.Key, in CounterIncrement) (bool, error)
}
