package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bcyyahz/jizhangAPP/internal/core"
	"github.com/bcyyahz/jizhangAPP/internal/storage"
)

func startHolder(t *testing.T, store Store, opts ...Option) *Holder {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := New(store, opts...)
	if err := h.Start(ctx); err != nil {
		t.Fatalf("start holder: %v", err)
	}
	return h
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached within deadline")
}

func TestSeedOnFirstActivation(t *testing.T) {
	store := storage.NewMemoryStore()
	h := startHolder(t, store)

	expenses := h.Categories(core.Expense)
	if len(expenses) != 1 || expenses[0].Name != "Default" {
		t.Fatalf("expected seeded Default expense category, got %v", expenses)
	}
	incomes := h.Categories(core.Income)
	if len(incomes) != 1 || incomes[0].Name != "Salary" {
		t.Fatalf("expected seeded Salary income category, got %v", incomes)
	}

	// Re-initialization against a non-empty store adds nothing.
	h2 := startHolder(t, store)
	if got := h2.Categories(core.Expense); len(got) != 1 {
		t.Fatalf("second activation re-seeded: %v", got)
	}
	if got := h2.Categories(core.Income); len(got) != 1 {
		t.Fatalf("second activation re-seeded: %v", got)
	}
}

func TestSeedOnlyMissingType(t *testing.T) {
	store := storage.NewMemoryStore()
	if _, err := store.InsertCategory(context.Background(), core.Category{Name: "Rent", Type: core.Expense}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	h := startHolder(t, store)

	expenses := h.Categories(core.Expense)
	if len(expenses) != 1 || expenses[0].Name != "Rent" {
		t.Fatalf("expense type should not have been seeded: %v", expenses)
	}
	incomes := h.Categories(core.Income)
	if len(incomes) != 1 || incomes[0].Name != "Salary" {
		t.Fatalf("income type should have been seeded: %v", incomes)
	}
}

func TestInsertTransactionUpdatesViewsAndSummary(t *testing.T) {
	h := startHolder(t, storage.NewMemoryStore())

	h.InsertTransaction(core.Transaction{
		Amount: core.Money{Cents: 10000}, Category: "Salary",
		Date: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), Type: core.Income,
	})
	h.InsertTransaction(core.Transaction{
		Amount: core.Money{Cents: 6000}, Category: "Food",
		Date: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), Type: core.Expense,
	})

	waitFor(t, func() bool { return len(h.Transactions()) == 2 })

	s := h.Summary()
	if s.TotalIncome.Cents != 10000 || s.TotalExpense.Cents != 6000 || s.Balance.Cents != 4000 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.ExpenseByCategory["Food"].Cents != 6000 {
		t.Fatalf("unexpected breakdown: %v", s.ExpenseByCategory)
	}

	// The live view is ordered by date descending.
	txs := h.Transactions()
	if txs[0].Category != "Food" {
		t.Fatalf("expected newest transaction first, got %v", txs)
	}
}

func TestInsertCategoryUpdatesTypedView(t *testing.T) {
	h := startHolder(t, storage.NewMemoryStore())

	h.InsertCategory(core.Category{Name: "Bonus", Type: core.Income})

	waitFor(t, func() bool { return len(h.Categories(core.Income)) == 2 })

	incomes := h.Categories(core.Income)
	if incomes[0].Name != "Bonus" || incomes[1].Name != "Salary" {
		t.Fatalf("expected name-ascending view, got %v", incomes)
	}
	if got := h.Categories(core.Expense); len(got) != 1 {
		t.Fatalf("expense view changed unexpectedly: %v", got)
	}
}

func TestWatchSignalsOnChange(t *testing.T) {
	h := startHolder(t, storage.NewMemoryStore())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := h.Watch(ctx)

	h.InsertTransaction(core.Transaction{
		Amount: core.Money{Cents: 1}, Category: "Food",
		Date: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), Type: core.Expense,
	})

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("no change notification received")
	}

	cancel()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("watch channel did not close after cancel")
		}
	}
}

type recordingPublisher struct {
	mu  sync.Mutex
	ids []int64
}

func (p *recordingPublisher) TransactionCreated(_ context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, id)
	return nil
}

func TestEventPublisherNotifiedAfterInsert(t *testing.T) {
	pub := &recordingPublisher{}
	h := startHolder(t, storage.NewMemoryStore(), WithEventPublisher(pub))

	h.InsertTransaction(core.Transaction{
		Amount: core.Money{Cents: 300}, Category: "Food",
		Date: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), Type: core.Expense,
	})

	waitFor(t, func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()
		return len(pub.ids) == 1
	})
}
