// Package state bridges the persistence store's live queries and the
// presentation layer: it keeps the latest transaction and category snapshots,
// recomputes the derived summary on every change, and exposes the two
// fire-and-forget insert commands.
package state

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bcyyahz/jizhangAPP/internal/core"
)

// commandTimeout bounds the background insert commands. All operations are
// local-storage writes, so this is generous.
const commandTimeout = 5 * time.Second

const (
	defaultExpenseCategory = "Default"
	defaultIncomeCategory  = "Salary"
)

type Holder struct {
	store  Store
	events EventPublisher

	mu      sync.RWMutex
	txs     []core.Transaction
	summary core.TransactionSummary
	cats    map[core.TxType][]core.Category

	subMu   sync.Mutex
	nextSub int
	subs    map[int]chan struct{}
}

type Option func(*Holder)

// WithEventPublisher attaches an optional publisher notified after each
// successful transaction insert.
func WithEventPublisher(p EventPublisher) Option {
	return func(h *Holder) { h.events = p }
}

func New(store Store, opts ...Option) *Holder {
	h := &Holder{
		store:   store,
		cats:    make(map[core.TxType][]core.Category),
		subs:    make(map[int]chan struct{}),
		summary: core.Summarize(nil),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Start seeds default categories, subscribes to the store's live queries and
// begins maintaining the derived views. The views are populated when Start
// returns; they keep updating until ctx is done.
func (h *Holder) Start(ctx context.Context) error {
	if err := h.Seed(ctx); err != nil {
		return fmt.Errorf("seed categories: %w", err)
	}

	txCh, err := h.store.WatchTransactions(ctx)
	if err != nil {
		return fmt.Errorf("watch transactions: %w", err)
	}
	incomeCh, err := h.store.WatchCategories(ctx, core.Income)
	if err != nil {
		return fmt.Errorf("watch income categories: %w", err)
	}
	expenseCh, err := h.store.WatchCategories(ctx, core.Expense)
	if err != nil {
		return fmt.Errorf("watch expense categories: %w", err)
	}

	// Subscriptions arrive primed with the current result set.
	h.setTransactions(<-txCh)
	h.setCategories(core.Income, <-incomeCh)
	h.setCategories(core.Expense, <-expenseCh)

	go h.run(ctx, txCh, incomeCh, expenseCh)
	return nil
}

// Seed creates the "Default" expense and "Salary" income categories when no
// category of that type exists yet. The check-then-insert is not atomic
// against a concurrent first launch; at-least-once seeding is accepted.
func (h *Holder) Seed(ctx context.Context) error {
	for typ, name := range map[core.TxType]string{
		core.Expense: defaultExpenseCategory,
		core.Income:  defaultIncomeCategory,
	} {
		n, err := h.store.CountCategories(ctx, typ)
		if err != nil {
			return err
		}
		if n > 0 {
			continue
		}
		if _, err := h.store.InsertCategory(ctx, core.Category{Name: name, Type: typ}); err != nil {
			return err
		}
		slog.InfoContext(ctx, "Seeded default category", "name", name, "type", string(typ))
	}
	return nil
}

func (h *Holder) run(ctx context.Context, txCh <-chan []core.Transaction, incomeCh, expenseCh <-chan []core.Category) {
	for {
		select {
		case <-ctx.Done():
			return
		case txs, ok := <-txCh:
			if !ok {
				return
			}
			h.setTransactions(txs)
		case cats, ok := <-incomeCh:
			if !ok {
				return
			}
			h.setCategories(core.Income, cats)
		case cats, ok := <-expenseCh:
			if !ok {
				return
			}
			h.setCategories(core.Expense, cats)
		}
	}
}

func (h *Holder) setTransactions(txs []core.Transaction) {
	summary := core.Summarize(txs)
	h.mu.Lock()
	h.txs = txs
	h.summary = summary
	h.mu.Unlock()
	h.notify()
}

func (h *Holder) setCategories(typ core.TxType, cats []core.Category) {
	h.mu.Lock()
	h.cats[typ] = cats
	h.mu.Unlock()
	h.notify()
}

// InsertTransaction issues the insert command without waiting for completion.
// Callers observe the result only through the live views updating; a storage
// failure surfaces as a could-not-save log entry.
func (h *Holder) InsertTransaction(t core.Transaction) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		id, err := h.store.InsertTransaction(ctx, t)
		if err != nil {
			slog.Error("Could not save transaction",
				"error", err,
				"type", string(t.Type),
				"category", t.Category,
				"amount_cents", t.Amount.Cents)
			return
		}
		if h.events != nil {
			if err := h.events.TransactionCreated(ctx, id); err != nil {
				slog.Error("Failed to publish transaction event", "error", err, "id", id)
			}
		}
	}()
}

// InsertCategory issues the insert command without waiting for completion.
func (h *Holder) InsertCategory(c core.Category) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		if _, err := h.store.InsertCategory(ctx, c); err != nil {
			slog.Error("Could not save category",
				"error", err,
				"name", c.Name,
				"type", string(c.Type))
		}
	}()
}

// Transactions returns the latest snapshot, ordered by date descending.
func (h *Holder) Transactions() []core.Transaction {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]core.Transaction(nil), h.txs...)
}

// Categories returns the latest snapshot of one type, ordered by name.
func (h *Holder) Categories(typ core.TxType) []core.Category {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]core.Category(nil), h.cats[typ]...)
}

// Summary returns the latest derived summary. The breakdown map is rebuilt on
// every recomputation and must be treated as read-only.
func (h *Holder) Summary() core.TransactionSummary {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.summary
}

// Watch returns a channel that signals whenever any view changed. Signals
// coalesce: a slow consumer receives at most one pending notification. The
// channel closes when ctx is done.
func (h *Holder) Watch(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{}, 1)

	h.subMu.Lock()
	id := h.nextSub
	h.nextSub++
	h.subs[id] = ch
	h.subMu.Unlock()

	go func() {
		<-ctx.Done()
		h.subMu.Lock()
		defer h.subMu.Unlock()
		if _, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(ch)
		}
	}()

	return ch
}

func (h *Holder) notify() {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
