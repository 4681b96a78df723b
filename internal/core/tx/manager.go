// Package tx provides transaction management abstractions.
// Domain services depend on these interfaces; the PostgreSQL implementation
// lives in infrastructure/storage/postgres.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// SnapshotManager extends Manager with a consistent read-only snapshot.
type SnapshotManager interface {
	Manager

	// Snapshot executes fn in a read-only REPEATABLE READ transaction, so every
	// query inside fn observes the same state of the database.
	Snapshot(ctx context.Context, fn func(ctx context.Context) error) error
}
