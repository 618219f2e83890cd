package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
)

// CSVHeader is the column order of exported expenses.
var CSVHeader = []string{"Date", "Description", "Amount", "Currency", "Category", "Source", "Notes"}

// escapeCSV quotes a cell only when it contains a comma, quote, CR or LF.
// Embedded quotes are doubled.
func escapeCSV(v string) string {
	if strings.ContainsAny(v, ",\"\n\r") {
		return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
	}
	return v
}

// WriteExpensesCSV writes the header and one row per expense, rows joined by
// "\n" with no trailing newline. Amounts have two decimals and categories
// use their display label.
func WriteExpensesCSV(w io.Writer, expenses []*domain.Expense) error {
	lines := make([]string, 0, len(expenses)+1)
	lines = append(lines, strings.Join(CSVHeader, ","))

	for _, e := range expenses {
		currency := e.Currency
		if currency == "" {
			currency = "USD"
		}
		row := []string{
			escapeCSV(e.Date),
			escapeCSV(e.Description),
			fmt.Sprintf("%.2f", e.Amount),
			escapeCSV(currency),
			escapeCSV(e.Category.Label()),
			escapeCSV(string(e.Source)),
			escapeCSV(e.Notes),
		}
		lines = append(lines, strings.Join(row, ","))
	}

	if _, err := io.WriteString(w, strings.Join(lines, "\n")); err != nil {
		return fmt.Errorf("failed to write CSV export: %w", err)
	}
	return nil
}

// ExportFilename names an export produced at t, e.g. expenses-2024-01-15.csv.
func ExportFilename(t time.Time, ext string) string {
	return fmt.Sprintf("expenses-%s.%s", t.Format("2006-01-02"), ext)
}
