// Package storage implements the persistence store: two append-only tables
// (transactions, categories) plus live queries that re-emit their result set
// to subscribers after every insert.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bcyyahz/jizhangAPP/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB

	// emitMu serializes insert + re-query + publish so live-query snapshots
	// reach subscribers in monotonic order.
	emitMu   sync.Mutex
	txWatch  *watcher[[]core.Transaction]
	catWatch map[core.TxType]*watcher[[]core.Category]
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{
		db:      db,
		txWatch: newWatcher[[]core.Transaction](),
		catWatch: map[core.TxType]*watcher[[]core.Category]{
			core.Income:  newWatcher[[]core.Category](),
			core.Expense: newWatcher[[]core.Category](),
		},
	}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InsertTransaction appends a transaction and assigns its id. Every active
// transaction subscription receives the updated result set afterwards.
func (s *SQLiteStore) InsertTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (amount_cents, category, date, description, type)
		 VALUES (?, ?, ?, ?, ?)`,
		t.Amount.Cents, t.Category, t.Date.Unix(), t.Description, string(t.Type))
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction id: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", id,
		"type", string(t.Type),
		"category", t.Category,
		"amount_cents", t.Amount.Cents)

	if txs, err := s.Transactions(ctx); err == nil {
		s.txWatch.publish(txs)
	} else {
		slog.ErrorContext(ctx, "Live query re-emission failed", "error", err)
	}
	return id, nil
}

// InsertCategory appends a category and assigns its id. Subscriptions
// watching the category's type receive the updated result set afterwards.
func (s *SQLiteStore) InsertCategory(ctx context.Context, c core.Category) (int64, error) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (name, type) VALUES (?, ?)`,
		c.Name, string(c.Type))
	if err != nil {
		return 0, fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("category id: %w", err)
	}

	slog.InfoContext(ctx, "Category saved", "id", id, "name", c.Name, "type", string(c.Type))

	if cats, err := s.Categories(ctx, c.Type); err == nil {
		s.catWatch[c.Type].publish(cats)
	} else {
		slog.ErrorContext(ctx, "Live query re-emission failed", "error", err)
	}
	return id, nil
}

// Transactions returns all transactions ordered by date descending.
// Id breaks ties so repeated reads are stable.
func (s *SQLiteStore) Transactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, amount_cents, category, date, description, type
		 FROM transactions ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// Transaction returns a single transaction by id.
func (s *SQLiteStore) Transaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, amount_cents, category, date, description, type
		 FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, ErrNotFound
		}
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

// Categories returns the categories of one type ordered by name ascending.
func (s *SQLiteStore) Categories(ctx context.Context, typ core.TxType) ([]core.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, type FROM categories WHERE type = ? ORDER BY name ASC, id ASC`,
		string(typ))
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var cats []core.Category
	for rows.Next() {
		var c core.Category
		var t string
		if err := rows.Scan(&c.ID, &c.Name, &t); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Type = core.TxType(t)
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// CountCategories reports how many categories of a type exist. The state
// holder uses it to guard default-category seeding.
func (s *SQLiteStore) CountCategories(ctx context.Context, typ core.TxType) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM categories WHERE type = ?`, string(typ)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	return n, nil
}

// WatchTransactions subscribes to the live transaction query. The first
// emission is the current result set; each subsequent insert triggers exactly
// one re-emission. The channel closes when ctx is done.
func (s *SQLiteStore) WatchTransactions(ctx context.Context) (<-chan []core.Transaction, error) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	txs, err := s.Transactions(ctx)
	if err != nil {
		return nil, err
	}
	return s.txWatch.subscribe(ctx, txs), nil
}

// WatchCategories subscribes to the live category query for one type,
// primed with the current result set.
func (s *SQLiteStore) WatchCategories(ctx context.Context, typ core.TxType) (<-chan []core.Category, error) {
	if !typ.Valid() {
		return nil, core.ErrInvalidType
	}
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	cats, err := s.Categories(ctx, typ)
	if err != nil {
		return nil, err
	}
	return s.catWatch[typ].subscribe(ctx, cats), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t    core.Transaction
		date int64
		typ  string
	)
	if err := row.Scan(&t.ID, &t.Amount.Cents, &t.Category, &date, &t.Description, &typ); err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	t.Date = time.Unix(date, 0).UTC()
	t.Type = core.TxType(typ)
	return t, nil
}
