package output

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"sort"
	"time"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/validate"
)

//go:embed report.html.tmpl
var reportSource string

var reportTemplate = template.Must(template.New("report").Parse(reportSource))

// reportRow is one expense line of the printable report.
type reportRow struct {
	Date        string
	Description string
	Amount      string
	Currency    string
	Category    string
	Notes       string
}

type reportData struct {
	Generated string
	Period    string
	Total     string
	Count     int
	Average   string
	Rows      []reportRow
}

// WriteExpensesReport renders a printable HTML expense report. Totals sum the
// raw amounts whatever their currency.
func WriteExpensesReport(w io.Writer, expenses []*domain.Expense, generated time.Time) error {
	data := reportData{
		Generated: generated.Format("2006-01-02"),
		Period:    dateRange(expenses),
		Count:     len(expenses),
		Average:   validate.FormatCurrency(0, "USD"),
	}

	var total float64
	for _, e := range expenses {
		total += e.Amount
		currency := e.Currency
		if currency == "" {
			currency = "USD"
		}
		notes := e.Notes
		if notes == "" {
			notes = "-"
		}
		data.Rows = append(data.Rows, reportRow{
			Date:        e.Date,
			Description: e.Description,
			Amount:      validate.FormatCurrency(e.Amount, currency),
			Currency:    currency,
			Category:    e.Category.Label(),
			Notes:       notes,
		})
	}
	data.Total = validate.FormatCurrency(total, "USD")
	if len(expenses) > 0 {
		data.Average = validate.FormatCurrency(total/float64(len(expenses)), "USD")
	}

	if err := reportTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render expense report: %w", err)
	}
	return nil
}

// dateRange is "earliest to latest", a single date, or empty.
func dateRange(expenses []*domain.Expense) string {
	if len(expenses) == 0 {
		return ""
	}
	dates := make([]string, 0, len(expenses))
	for _, e := range expenses {
		dates = append(dates, e.Date)
	}
	sort.Strings(dates)
	earliest, latest := dates[0], dates[len(dates)-1]
	if earliest == latest {
		return earliest
	}
	return earliest + " to " + latest
}
