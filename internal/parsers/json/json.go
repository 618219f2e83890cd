// Package json parses free-form JSON expense exports.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/parser"
)

// Field name fallbacks per semantic role, in priority order.
var (
	descriptionFields = []string{"description", "desc", "name", "memo", "merchant", "payee"}
	amountFields      = []string{"amount", "total", "price", "cost", "value"}
	dateFields        = []string{"date", "transaction_date", "posted_date"}
	containerKeys     = []string{"expenses", "transactions", "data", "items"}
)

// Parser reads JSON arrays of expense objects. Stateless.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared JSON parser instance.
func NewParser() *Parser {
	return parserInstance
}

// Type returns the import file type
func (p *Parser) Type() domain.ImportFileType {
	return domain.FileTypeJSON
}

// Parse accepts a bare array or an object holding the array under one of the
// container keys. Items are numbered from 1.
func (p *Parser) Parse(ctx context.Context, f *parser.File) domain.ParseResult {
	select {
	case <-ctx.Done():
		return domain.FailedParse(domain.FileTypeJSON, ctx.Err().Error())
	default:
	}

	text, err := f.Text()
	if err != nil {
		return domain.FailedParse(domain.FileTypeJSON, fmt.Sprintf("Failed to parse JSON: %v", err))
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var data any
	if err := dec.Decode(&data); err != nil || dec.More() {
		return domain.FailedParse(domain.FileTypeJSON, "Invalid JSON file. Could not parse contents.")
	}

	var items []any
	switch v := data.(type) {
	case []any:
		items = v
	case map[string]any:
		arr, ok := containerArray(v)
		if !ok {
			return domain.FailedParse(domain.FileTypeJSON,
				`JSON must be an array of expenses or an object with an "expenses", "transactions", "data", or "items" array.`)
		}
		items = arr
	default:
		return domain.FailedParse(domain.FileTypeJSON, "JSON must be an array or object containing expense data.")
	}

	if len(items) == 0 {
		return domain.FailedParse(domain.FileTypeJSON, "No expense entries found in JSON.")
	}

	result := domain.NewParseResult(domain.FileTypeJSON)
	result.TotalRows = len(items)

	for i, raw := range items {
		row := i + 1
		item, ok := raw.(map[string]any)
		if !ok {
			result.AddError(row, "Entry is not an object")
			continue
		}

		rawDesc := firstTruthy(item, descriptionFields)
		rawAmount := firstTruthy(item, amountFields)
		rawDate := firstTruthy(item, dateFields)

		description := ""
		if s, ok := rawDesc.(string); ok {
			description = strings.TrimSpace(s)
		}
		if description == "" {
			result.AddError(row, "Missing description")
			continue
		}

		amount, ok := parser.ParseAmount(rawAmount)
		if !ok || amount == 0 {
			result.AddError(row, fmt.Sprintf("Invalid amount: %q", parser.FormatRaw(rawAmount)))
			continue
		}

		// An unreadable date is not a row error here; the entry is dated today.
		date := domain.Today()
		if rawDate != nil {
			if parsed, ok := parser.ParseDate(parser.FormatRaw(rawDate)); ok {
				date = parsed
			}
		}

		expense := domain.RawExpense{
			Description: description,
			Amount:      amount,
			Date:        date,
		}
		if c, ok := item["category"].(string); ok {
			expense.Category = strings.ToLower(strings.TrimSpace(c))
		}
		if n, ok := item["notes"].(string); ok {
			expense.Notes = n
		}
		result.AddExpense(expense)
	}

	return result
}

// containerArray returns the first truthy container key, which must hold an array.
func containerArray(obj map[string]any) ([]any, bool) {
	v := firstTruthy(obj, containerKeys)
	arr, ok := v.([]any)
	return arr, ok
}

// firstTruthy returns the value of the first key whose value is present and
// not empty, zero or false.
func firstTruthy(obj map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := obj[k]; ok && parser.Truthy(v) {
			return v
		}
	}
	return nil
}
