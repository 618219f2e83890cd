// Package csv parses header-based CSV exports into candidate expenses.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/parser"
)

// Parser implements header-based CSV parsing with a stateless design.
// It holds no configuration, so the shared instance is safe for concurrent use.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared CSV parser instance.
func NewParser() *Parser {
	return parserInstance
}

// Type returns the import file type
func (p *Parser) Type() domain.ImportFileType {
	return domain.FileTypeCSV
}

// Parse reads the header row, resolves the amount, description, date and
// category columns, and converts every data row.
func (p *Parser) Parse(ctx context.Context, f *parser.File) domain.ParseResult {
	select {
	case <-ctx.Done():
		return domain.FailedParse(domain.FileTypeCSV, ctx.Err().Error())
	default:
	}

	text, err := f.Text()
	if err != nil {
		return domain.FailedParse(domain.FileTypeCSV, err.Error())
	}

	table, err := ReadTable(strings.NewReader(text))
	if err != nil {
		return domain.FailedParse(domain.FileTypeCSV, fmt.Sprintf("Failed to read CSV: %v", err))
	}

	if len(table.Rows) == 0 || len(table.Headers) == 0 {
		return domain.FailedParse(domain.FileTypeCSV, "No data found in CSV")
	}

	return parser.ParseTable(domain.FileTypeCSV, table, parser.TableOptions{})
}

// ReadTable reads comma-separated records into a header-keyed table. Cells are
// dynamically typed with parser.TypeCell. Duplicate header names get a numeric
// suffix so no column is shadowed.
func ReadTable(r io.Reader) (parser.Table, error) {
	csvReader := csv.NewReader(r)
	csvReader.LazyQuotes = true
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return parser.Table{}, fmt.Errorf("failed to read CSV content: %w", err)
	}
	if len(records) == 0 {
		return parser.Table{}, nil
	}

	headers := uniqueHeaders(records[0])
	rows := make([]parser.Row, 0, len(records)-1)
	for _, record := range records[1:] {
		if isBlank(record) {
			continue
		}
		row := make(parser.Row, len(headers))
		for i, h := range headers {
			if i < len(record) {
				row[h] = parser.TypeCell(record[i])
			}
		}
		rows = append(rows, row)
	}

	return parser.Table{Headers: headers, Rows: rows}, nil
}

func uniqueHeaders(raw []string) []string {
	seen := make(map[string]int, len(raw))
	headers := make([]string, len(raw))
	for i, h := range raw {
		name := h
		if n, dup := seen[h]; dup {
			name = fmt.Sprintf("%s_%d", h, n)
		}
		seen[h]++
		headers[i] = name
	}
	return headers
}

func isBlank(record []string) bool {
	return len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "")
}
