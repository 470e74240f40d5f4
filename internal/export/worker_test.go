package export

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bcyyahz/jizhangAPP/internal/amqp"
	"github.com/bcyyahz/jizhangAPP/internal/core"
	"github.com/bcyyahz/jizhangAPP/internal/storage"
)

func TestHandleCreatedAppendsCSV(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	path := filepath.Join(t.TempDir(), "ledger.csv")
	w := NewWorker(store, path)

	id1, err := store.InsertTransaction(ctx, core.Transaction{
		Amount: core.Money{Cents: 1234}, Category: "Food",
		Date:        time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC),
		Description: "lunch", Type: core.Expense,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	id2, err := store.InsertTransaction(ctx, core.Transaction{
		Amount: core.Money{Cents: 500000}, Category: "Salary",
		Date: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), Type: core.Income,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	for _, id := range []int64{id1, id2} {
		if err := w.HandleCreated(ctx, amqp.NewTransactionCreatedMessage(id)); err != nil {
			t.Fatalf("handle %d: %v", id, err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if rows[0][0] != "id" || rows[0][4] != "amount" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	if rows[1][2] != "expense" || rows[1][3] != "Food" || rows[1][4] != "12.34" || rows[1][5] != "lunch" {
		t.Fatalf("unexpected first record: %v", rows[1])
	}
	if rows[2][2] != "income" || rows[2][4] != "5000.00" {
		t.Fatalf("unexpected second record: %v", rows[2])
	}
}

func TestHandleCreatedHeaderWrittenOnce(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	path := filepath.Join(t.TempDir(), "ledger.csv")
	w := NewWorker(store, path)

	id, _ := store.InsertTransaction(ctx, core.Transaction{
		Amount: core.Money{Cents: 1}, Category: "c",
		Date: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), Type: core.Expense,
	})

	// Delivery may repeat (at-least-once); the header must not.
	for i := 0; i < 3; i++ {
		if err := w.HandleCreated(ctx, amqp.NewTransactionCreatedMessage(id)); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}

	f, _ := os.Open(path)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want header + 3", len(rows))
	}
	for i, row := range rows[1:] {
		if row[0] != "1" {
			t.Fatalf("row %d: unexpected id %s", i+1, row[0])
		}
	}
}

func TestHandleCreatedUnknownIDRequeues(t *testing.T) {
	store := storage.NewMemoryStore()
	w := NewWorker(store, filepath.Join(t.TempDir(), "ledger.csv"))

	err := w.HandleCreated(context.Background(), amqp.NewTransactionCreatedMessage(99))
	if err == nil {
		t.Fatalf("expected error for unknown transaction id")
	}
}
