package core

// TransactionSummary is derived from the full transaction list on every
// change and never persisted.
type TransactionSummary struct {
	TotalIncome       Money
	TotalExpense      Money
	Balance           Money
	ExpenseByCategory map[string]Money
}

// Summarize folds a transaction list into totals and a per-category expense
// breakdown in a single pass. Balance is income minus expense. A category
// appears in the breakdown only when at least one expense was filed under it.
//
// The input may be in any order and may be empty; amounts are integer cents,
// so the sums are exact regardless of accumulation order.
func Summarize(txs []Transaction) TransactionSummary {
	s := TransactionSummary{ExpenseByCategory: make(map[string]Money)}
	for _, t := range txs {
		switch t.Type {
		case Income:
			s.TotalIncome.Cents += t.Amount.Cents
		case Expense:
			s.TotalExpense.Cents += t.Amount.Cents
			byCat := s.ExpenseByCategory[t.Category]
			byCat.Cents += t.Amount.Cents
			s.ExpenseByCategory[t.Category] = byCat
		}
	}
	s.Balance = Money{Cents: s.TotalIncome.Cents - s.TotalExpense.Cents}
	return s
}
