package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bcyyahz/jizhangAPP/internal/core"
)

// store is the surface shared by both backends, for running every test
// against each of them.
type store interface {
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

func eachStore(t *testing.T, fn func(t *testing.T, s store)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "jizhang.db"))
		if err != nil {
			t.Fatalf("open sqlite store: %v", err)
		}
		defer s.Close()
		fn(t, s)
	})
	t.Run("memory", func(t *testing.T) {
		s := NewMemoryStore()
		defer s.Close()
		fn(t, s)
	})
}

func day(d int) time.Time {
	return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC)
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("subscription closed unexpectedly")
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for emission")
		panic("unreachable")
	}
}

func TestTransactionsOrderedByDateDescending(t *testing.T) {
	eachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		for _, tx := range []core.Transaction{
			{Amount: core.Money{Cents: 100}, Category: "Food", Date: day(10), Type: core.Expense},
			{Amount: core.Money{Cents: 200}, Category: "Rent", Date: day(20), Type: core.Expense},
			{Amount: core.Money{Cents: 300}, Category: "Salary", Date: day(15), Type: core.Income},
		} {
			if _, err := s.InsertTransaction(ctx, tx); err != nil {
				t.Fatalf("insert: %v", err)
			}
		}

		txs, err := s.Transactions(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(txs) != 3 {
			t.Fatalf("got %d transactions, want 3", len(txs))
		}
		for i := 1; i < len(txs); i++ {
			if txs[i].Date.After(txs[i-1].Date) {
				t.Fatalf("not ordered by date descending: %v before %v", txs[i-1].Date, txs[i].Date)
			}
		}
		if txs[0].Category != "Rent" || txs[2].Category != "Food" {
			t.Fatalf("unexpected order: %v", txs)
		}
	})
}

func TestSameDateTiebreakIsStable(t *testing.T) {
	eachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			tx := core.Transaction{Amount: core.Money{Cents: int64(i)}, Category: "c", Date: day(1), Type: core.Expense}
			if _, err := s.InsertTransaction(ctx, tx); err != nil {
				t.Fatalf("insert: %v", err)
			}
		}
		first, _ := s.Transactions(ctx)
		second, _ := s.Transactions(ctx)
		for i := range first {
			if first[i].ID != second[i].ID {
				t.Fatalf("repeated reads disagree at %d: %d vs %d", i, first[i].ID, second[i].ID)
			}
		}
		// Newest insert wins the tie.
		if first[0].Amount.Cents != 2 {
			t.Fatalf("expected newest insert first on equal dates, got %+v", first[0])
		}
	})
}

func TestCategoriesScopedByTypeOrderedByName(t *testing.T) {
	eachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		for _, c := range []core.Category{
			{Name: "Transport", Type: core.Expense},
			{Name: "Food", Type: core.Expense},
			{Name: "Salary", Type: core.Income},
			{Name: "Food", Type: core.Income}, // same name, other type: no conflict
		} {
			if _, err := s.InsertCategory(ctx, c); err != nil {
				t.Fatalf("insert category: %v", err)
			}
		}

		expenses, err := s.Categories(ctx, core.Expense)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(expenses) != 2 || expenses[0].Name != "Food" || expenses[1].Name != "Transport" {
			t.Fatalf("unexpected expense categories: %v", expenses)
		}

		incomes, _ := s.Categories(ctx, core.Income)
		if len(incomes) != 2 || incomes[0].Name != "Food" || incomes[1].Name != "Salary" {
			t.Fatalf("unexpected income categories: %v", incomes)
		}

		n, err := s.CountCategories(ctx, core.Expense)
		if err != nil || n != 2 {
			t.Fatalf("count expense = %d (%v), want 2", n, err)
		}
	})
}

func TestTransactionLookup(t *testing.T) {
	eachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		id, err := s.InsertTransaction(ctx, core.Transaction{
			Amount: core.Money{Cents: 4200}, Category: "Food", Date: day(3),
			Description: "groceries", Type: core.Expense,
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}

		got, err := s.Transaction(ctx, id)
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		if got.ID != id || got.Amount.Cents != 4200 || got.Description != "groceries" {
			t.Fatalf("unexpected transaction: %+v", got)
		}

		if _, err := s.Transaction(ctx, id+999); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestWatchTransactionsEmitsOnInsert(t *testing.T) {
	eachStore(t, func(t *testing.T, s store) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ch, err := s.WatchTransactions(ctx)
		if err != nil {
			t.Fatalf("watch: %v", err)
		}
		if initial := recv(t, ch); len(initial) != 0 {
			t.Fatalf("expected empty initial snapshot, got %d", len(initial))
		}

		if _, err := s.InsertTransaction(ctx, core.Transaction{
			Amount: core.Money{Cents: 1}, Category: "c", Date: day(1), Type: core.Expense,
		}); err != nil {
			t.Fatalf("insert: %v", err)
		}
		if snap := recv(t, ch); len(snap) != 1 {
			t.Fatalf("expected re-emission with 1 transaction, got %d", len(snap))
		}
	})
}

func TestWatchDeliversLatestSnapshotToSlowConsumer(t *testing.T) {
	eachStore(t, func(t *testing.T, s store) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ch, err := s.WatchTransactions(ctx)
		if err != nil {
			t.Fatalf("watch: %v", err)
		}
		// Do not consume: intermediate snapshots must be replaced, not queued.
		for i := 0; i < 5; i++ {
			if _, err := s.InsertTransaction(ctx, core.Transaction{
				Amount: core.Money{Cents: int64(i)}, Category: "c", Date: day(1), Type: core.Expense,
			}); err != nil {
				t.Fatalf("insert: %v", err)
			}
		}
		if snap := recv(t, ch); len(snap) != 5 {
			t.Fatalf("expected latest snapshot with 5 transactions, got %d", len(snap))
		}
	})
}

func TestWatchCategoriesScopedToType(t *testing.T) {
	eachStore(t, func(t *testing.T, s store) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		expCh, err := s.WatchCategories(ctx, core.Expense)
		if err != nil {
			t.Fatalf("watch: %v", err)
		}
		recv(t, expCh) // initial

		// An income insert must not re-emit the expense subscription.
		if _, err := s.InsertCategory(ctx, core.Category{Name: "Salary", Type: core.Income}); err != nil {
			t.Fatalf("insert: %v", err)
		}
		select {
		case snap := <-expCh:
			t.Fatalf("unexpected expense emission for income insert: %v", snap)
		case <-time.After(100 * time.Millisecond):
		}

		if _, err := s.InsertCategory(ctx, core.Category{Name: "Food", Type: core.Expense}); err != nil {
			t.Fatalf("insert: %v", err)
		}
		if snap := recv(t, expCh); len(snap) != 1 || snap[0].Name != "Food" {
			t.Fatalf("unexpected snapshot: %v", snap)
		}
	})
}

func TestWatchClosesOnCancel(t *testing.T) {
	eachStore(t, func(t *testing.T, s store) {
		ctx, cancel := context.WithCancel(context.Background())
		ch, err := s.WatchTransactions(ctx)
		if err != nil {
			t.Fatalf("watch: %v", err)
		}
		recv(t, ch)
		cancel()

		deadline := time.After(2 * time.Second)
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					return
				}
			case <-deadline:
				t.Fatalf("subscription did not close after cancel")
			}
		}
	})
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jizhang.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.InsertTransaction(ctx, core.Transaction{
		Amount: core.Money{Cents: 500}, Category: "Food", Date: day(2), Type: core.Expense,
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopen runs migrations again; they must be a no-op and the data intact.
	s2, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	txs, err := s2.Transactions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 1 || txs[0].Amount.Cents != 500 {
		t.Fatalf("data lost across reopen: %v", txs)
	}
}
