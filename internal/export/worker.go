// Package export appends persisted transactions to a CSV ledger file. It is
// driven by the transaction-created event feed: each message carries an id,
// the worker fetches the row from the store and writes one CSV record.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/bcyyahz/jizhangAPP/internal/amqp"
	"github.com/bcyyahz/jizhangAPP/internal/core"
)

// TransactionSource resolves event ids to full transactions.
type TransactionSource interface {
	Transaction(ctx context.Context, id int64) (core.Transaction, error)
}

var header = []string{"id", "date", "type", "category", "amount", "description"}

type Worker struct {
	source TransactionSource
	path   string

	// mu serializes appends so concurrent deliveries cannot interleave rows.
	mu sync.Mutex
}

func NewWorker(source TransactionSource, path string) *Worker {
	return &Worker{source: source, path: path}
}

// HandleCreated processes one transaction-created event. Returning an error
// requeues the message, so a transaction not yet visible (or a transient file
// error) is retried rather than lost.
func (w *Worker) HandleCreated(ctx context.Context, msg *amqp.TransactionCreatedMessage) error {
	t, err := w.source.Transaction(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("load transaction %d: %w", msg.ID, err)
	}

	if err := w.append(t); err != nil {
		return fmt.Errorf("append transaction %d: %w", msg.ID, err)
	}

	slog.InfoContext(ctx, "Transaction exported",
		"id", t.ID,
		"type", string(t.Type),
		"category", t.Category,
		"amount_cents", t.Amount.Cents)
	return nil
}

func (w *Worker) append(t core.Transaction) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	info, err := os.Stat(w.path)
	writeHeader := os.IsNotExist(err) || (err == nil && info.Size() == 0)

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open export file: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if writeHeader {
		if err := cw.Write(header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := cw.Write(record(t)); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

func record(t core.Transaction) []string {
	return []string{
		strconv.FormatInt(t.ID, 10),
		t.Date.UTC().Format(time.RFC3339),
		string(t.Type),
		t.Category,
		formatAmount(t.Amount.Cents),
		t.Description,
	}
}

// formatAmount renders cents as a plain decimal, e.g. 1234 -> "12.34".
func formatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
