package state

import (
	"context"

	"github.com/bcyyahz/jizhangAPP/internal/core"
)

// Store is the persistence surface the holder depends on: two append-only
// commands, the seeding guard, and the live queries.
type Store interface {
	InsertTransaction(ctx context.Context, t core.Transaction) (int64, error)
	InsertCategory(ctx context.Context, c core.Category) (int64, error)
	CountCategories(ctx context.Context, typ core.TxType) (int64, error)
	WatchTransactions(ctx context.Context) (<-chan []core.Transaction, error)
	WatchCategories(ctx context.Context, typ core.TxType) (<-chan []core.Category, error)
}

// EventPublisher is notified after a transaction insert has been persisted.
// Publishing is best-effort; failures never fail the insert.
type EventPublisher interface {
	TransactionCreated(ctx context.Context, id int64) error
}
