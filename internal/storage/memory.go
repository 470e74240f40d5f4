package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/bcyyahz/jizhangAPP/internal/core"
)

// MemoryStore keeps everything in process memory with the same live-query
// contract as SQLiteStore. It backs DATA_BACKEND=memory and the test suites.
type MemoryStore struct {
	mu         sync.Mutex
	nextTxID   int64
	nextCatID  int64
	txs        []core.Transaction
	categories []core.Category

	txWatch  *watcher[[]core.Transaction]
	catWatch map[core.TxType]*watcher[[]core.Category]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextTxID:  1,
		nextCatID: 1,
		txWatch:   newWatcher[[]core.Transaction](),
		catWatch: map[core.TxType]*watcher[[]core.Category]{
			core.Income:  newWatcher[[]core.Category](),
			core.Expense: newWatcher[[]core.Category](),
		},
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) InsertTransaction(_ context.Context, t core.Transaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.ID = s.nextTxID
	s.nextTxID++
	s.txs = append(s.txs, t)
	s.txWatch.publish(s.snapshotTransactions())
	return t.ID, nil
}

func (s *MemoryStore) InsertCategory(_ context.Context, c core.Category) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = s.nextCatID
	s.nextCatID++
	s.categories = append(s.categories, c)
	s.catWatch[c.Type].publish(s.snapshotCategories(c.Type))
	return c.ID, nil
}

func (s *MemoryStore) Transactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotTransactions(), nil
}

func (s *MemoryStore) Transaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.txs {
		if t.ID == id {
			return t, nil
		}
	}
	return core.Transaction{}, ErrNotFound
}

func (s *MemoryStore) Categories(_ context.Context, typ core.TxType) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotCategories(typ), nil
}

func (s *MemoryStore) CountCategories(_ context.Context, typ core.TxType) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, c := range s.categories {
		if c.Type == typ {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) WatchTransactions(ctx context.Context) (<-chan []core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txWatch.subscribe(ctx, s.snapshotTransactions()), nil
}

func (s *MemoryStore) WatchCategories(ctx context.Context, typ core.TxType) (<-chan []core.Category, error) {
	if !typ.Valid() {
		return nil, core.ErrInvalidType
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catWatch[typ].subscribe(ctx, s.snapshotCategories(typ)), nil
}

// snapshotTransactions returns a copy ordered by date descending, id
// descending on ties. Callers hold s.mu.
func (s *MemoryStore) snapshotTransactions() []core.Transaction {
	out := append([]core.Transaction(nil), s.txs...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// snapshotCategories returns a copy of one type's categories ordered by name
// ascending. Callers hold s.mu.
func (s *MemoryStore) snapshotCategories(typ core.TxType) []core.Category {
	var out []core.Category
	for _, c := range s.categories {
		if c.Type == typ {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}
