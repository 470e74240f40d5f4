package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/bcyyahz/jizhangAPP/internal/core"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "path", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	data := struct {
		Today             string
		ExpenseCategories []core.Category
		IncomeCategories  []core.Category
	}{
		Today:             time.Now().Format("2006-01-02"),
		ExpenseCategories: s.state.Categories(core.Expense),
		IncomeCategories:  s.state.Categories(core.Income),
	}

	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Index template execution failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type transactionRow struct {
	Date        string
	Description string
	Category    string
	Amount      string
	Income      bool
}

// handleTransactionList renders the scrollable transaction list partial.
func (s *Server) handleTransactionList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	txs := s.state.Transactions()
	rows := make([]transactionRow, 0, len(txs))
	for _, t := range txs {
		rows = append(rows, transactionRow{
			Date:        t.Date.Format("2006-01-02"),
			Description: t.Description,
			Category:    t.Category,
			Amount:      formatYuan(t.Amount.Cents),
			Income:      t.Type == core.Income,
		})
	}

	s.renderPartial(w, r, "transactions.html", struct {
		Rows []transactionRow
	}{Rows: rows})
}

type categoryRow struct {
	Name    string
	Amount  string
	Percent string
	Width   int
}

// handleStatistics renders totals, balance and the proportional per-category
// expense breakdown. Percentages are computed here, never in the aggregator,
// and a zero expense total never divides.
func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	summary := s.state.Summary()

	names := make([]string, 0, len(summary.ExpenseByCategory))
	for name := range summary.ExpenseByCategory {
		names = append(names, name)
	}
	// Largest first; name breaks ties so rendering is deterministic.
	sort.Slice(names, func(i, j int) bool {
		a := summary.ExpenseByCategory[names[i]].Cents
		b := summary.ExpenseByCategory[names[j]].Cents
		if a != b {
			return a > b
		}
		return names[i] < names[j]
	})

	total := summary.TotalExpense.Cents
	rows := make([]categoryRow, 0, len(names))
	for _, name := range names {
		cents := summary.ExpenseByCategory[name].Cents
		row := categoryRow{
			Name:    name,
			Amount:  formatYuan(cents),
			Percent: "0.0%",
		}
		if total > 0 {
			row.Percent = fmt.Sprintf("%.1f%%", float64(cents)*100/float64(total))
			row.Width = int((cents*100 + total/2) / total)
			if row.Width < 2 {
				row.Width = 2
			}
		}
		rows = append(rows, row)
	}

	s.renderPartial(w, r, "statistics.html", struct {
		TotalIncome  string
		TotalExpense string
		Balance      string
		Rows         []categoryRow
	}{
		TotalIncome:  formatYuan(summary.TotalIncome.Cents),
		TotalExpense: formatYuan(summary.TotalExpense.Cents),
		Balance:      formatYuan(summary.Balance.Cents),
		Rows:         rows,
	})
}

// handleCategoryOptions renders the category select options scoped to the
// chosen transaction type.
func (s *Server) handleCategoryOptions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	typ := core.TxType(r.URL.Query().Get("type"))
	if !typ.Valid() {
		typ = core.Expense
	}

	s.renderPartial(w, r, "category_options.html", struct {
		Categories []core.Category
	}{Categories: s.state.Categories(typ)})
}

// handleCreateTransaction accepts the creation form. The form disables
// submission until the amount parses and a category is chosen; on the server
// side malformed amount text coerces to zero by policy while a missing
// category is rejected.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowedError("POST").Write(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "path", r.URL.Path)
		BadRequestError("Invalid request format").Write(w)
		return
	}

	typ := core.TxType(r.Form.Get("type"))
	category := sanitizeInput(r.Form.Get("category"))
	description := sanitizeInput(r.Form.Get("description"))
	cents := core.ParseAmountCents(r.Form.Get("amount"))

	date := time.Now()
	if d, err := parseDate(r.Form.Get("date")); err == nil {
		date = d
	}

	tx := core.Transaction{
		Amount:      core.Money{Cents: cents},
		Category:    category,
		Date:        date,
		Description: description,
		Type:        typ,
	}
	if err := tx.Validate(); err != nil {
		UnprocessableEntityError("Invalid data: " + err.Error()).Write(w)
		return
	}

	// Fire-and-forget: the live views deliver the outcome.
	s.state.InsertTransaction(tx)

	NewHTMXResponse().
		TriggerFormReset().
		TriggerSuccessNotification("Transaction recorded: " + formatYuan(cents)).
		Write(w)
}

// handleCreateCategory accepts the new-category form.
func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowedError("POST").Write(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	c := core.Category{
		Name: sanitizeInput(r.Form.Get("name")),
		Type: core.TxType(r.Form.Get("type")),
	}
	if err := c.Validate(); err != nil {
		UnprocessableEntityError("Invalid data: " + err.Error()).Write(w)
		return
	}

	s.state.InsertCategory(c)

	NewHTMXResponse().
		TriggerFormReset().
		TriggerSuccessNotification("Category added: " + c.Name).
		Write(w)
}

// handleEvents streams a server-sent event whenever the live views change.
// The client re-fetches the affected partials on each event.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.state.Watch(r.Context())
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprint(w, "event: change\ndata: {}\n\n")
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"uptime": time.Since(s.uptime).String(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]string{"templates": "ok", "state": "ok"}

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}
	if s.state == nil {
		checks["state"] = "failed: state holder not configured"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]any{"status": status, "checks": checks})
}

func (s *Server) renderPartial(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", name)
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}
