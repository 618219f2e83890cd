package parser

import (
	"fmt"
	"strings"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
)

// Row is a header-keyed record. Missing cells are absent or nil.
type Row map[string]any

// Table is a header row plus data rows, as produced by the CSV and Excel readers.
type Table struct {
	Headers []string
	Rows    []Row
}

// TableOptions adjusts per-format behavior of ParseTable.
type TableOptions struct {
	// DateCell converts a non-string date cell (for example a spreadsheet
	// serial number) to text. When nil or when it reports false, the cell is
	// rendered with FormatRaw.
	DateCell func(value any) (string, bool)
}

// MissingColumnsMessage is the structural error reported when the amount or
// description role cannot be resolved.
func MissingColumnsMessage(headers []string) string {
	return fmt.Sprintf("Could not find required columns. Found: %s. Need at least an amount and description column.",
		strings.Join(headers, ", "))
}

// ParseTable resolves columns once and converts each data row. Rows are
// numbered from 2 because row 1 is the header. A bad row is recorded and
// skipped; it never aborts the table.
func ParseTable(fileType domain.ImportFileType, t Table, opts TableOptions) domain.ParseResult {
	amountCol, okAmount := FindColumn(t.Headers, AmountColumns)
	descCol, okDesc := FindColumn(t.Headers, DescriptionColumns)
	dateCol, hasDate := FindColumn(t.Headers, DateColumns)
	catCol, hasCat := FindColumn(t.Headers, CategoryColumns)

	if !okAmount || !okDesc {
		return domain.FailedParse(fileType, MissingColumnsMessage(t.Headers))
	}

	result := domain.NewParseResult(fileType)
	result.TotalRows = len(t.Rows)

	for i, row := range t.Rows {
		rowNum := i + 2

		amount, ok := ParseAmount(row[amountCol])
		var description string
		if Truthy(row[descCol]) {
			description = strings.TrimSpace(FormatRaw(row[descCol]))
		}

		var dateStr string
		if hasDate && Truthy(row[dateCol]) {
			dateStr = dateText(row[dateCol], opts)
		}

		var category string
		if hasCat && Truthy(row[catCol]) {
			category = strings.ToLower(strings.TrimSpace(FormatRaw(row[catCol])))
		}

		if !ok || amount == 0 {
			result.AddError(rowNum, fmt.Sprintf("Invalid amount: %q", FormatRaw(row[amountCol])))
			continue
		}
		if description == "" {
			result.AddError(rowNum, "Empty description")
			continue
		}

		date := domain.Today()
		if dateStr != "" {
			parsed, ok := ParseDate(dateStr)
			if !ok {
				result.AddError(rowNum, fmt.Sprintf("Invalid date: %q", dateStr))
				continue
			}
			date = parsed
		}

		result.AddExpense(domain.RawExpense{
			Description: description,
			Amount:      amount,
			Date:        date,
			Category:    category,
		})
	}

	return result
}

func dateText(value any, opts TableOptions) string {
	if _, isString := value.(string); !isString && opts.DateCell != nil {
		if s, ok := opts.DateCell(value); ok {
			return s
		}
	}
	return FormatRaw(value)
}
