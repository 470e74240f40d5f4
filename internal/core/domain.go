package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

type (
	// TxType partitions transactions and categories into the two ledger sides.
	TxType string

	// Transaction is an immutable ledger entry. Category holds the category
	// name as it was at creation time; renaming a category later never
	// rewrites historical transactions.
	Transaction struct {
		ID          int64
		Amount      Money
		Category    string
		Date        time.Time
		Description string
		Type        TxType
	}

	// Category names are scoped by type: an income category and an expense
	// category may share a name without conflict.
	Category struct {
		ID   int64
		Name string
		Type TxType
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidType   = errors.New("invalid transaction type")
	ErrEmptyCategory = errors.New("empty category")
	ErrEmptyName     = errors.New("empty category name")
	ErrZeroDate      = errors.New("date cannot be zero")
)

func (t TxType) Valid() bool {
	return t == Income || t == Expense
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if t.Date.IsZero() {
		return ErrZeroDate
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

func (c Category) Validate() error {
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 60 {
		return errors.New("category name too long (max 60 characters)")
	}
	return nil
}
