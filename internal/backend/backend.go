// Package backend selects and constructs the persistence store from
// configuration. The store is built here, once, and handed to whoever owns
// application state; nothing holds a package-level database instance.
package backend

import (
	"context"
	"fmt"

	"github.com/bcyyahz/jizhangAPP/internal/config"
	"github.com/bcyyahz/jizhangAPP/internal/core"
	"github.com/bcyyahz/jizhangAPP/internal/storage"
)

// Store is the full persistence surface both backends provide. It subsumes
// the narrower views the state holder and the export worker consume.
type Store interface {
	InsertTransaction(ctx context.Context, t core.Transaction) (int64, error)
	InsertCategory(ctx context.Context, c core.Category) (int64, error)
	Transactions(ctx context.Context) ([]core.Transaction, error)
	Transaction(ctx context.Context, id int64) (core.Transaction, error)
	Categories(ctx context.Context, typ core.TxType) ([]core.Category, error)
	CountCategories(ctx context.Context, typ core.TxType) (int64, error)
	WatchTransactions(ctx context.Context) (<-chan []core.Transaction, error)
	WatchCategories(ctx context.Context, typ core.TxType) (<-chan []core.Category, error)
	Close() error
}

// New constructs the store named by cfg.DataBackend.
func New(cfg *config.Config) (Store, error) {
	switch cfg.DataBackend {
	case "sqlite":
		store, err := storage.NewSQLiteStore(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("sqlite backend: %w", err)
		}
		return store, nil
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown data backend %q", cfg.DataBackend)
	}
}
