// Package pdf adapts a text-extraction capability into the PDF import
// format. The adapter never reads PDF structure itself; an Extractor does.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/parser"
)

// MaxTextLength is how much extracted text is considered per document.
const MaxTextLength = 8000

// Extractor turns a PDF document into candidate expenses.
type Extractor interface {
	Extract(ctx context.Context, name string, data []byte) (domain.ParseResult, error)
}

// ExtractionError is a failure whose message is shown to the user as is.
type ExtractionError struct {
	Message string
}

func (e *ExtractionError) Error() string {
	return e.Message
}

// Common extraction failures.
var (
	ErrNoText   = &ExtractionError{Message: "Could not extract text from PDF. The file may be image-based or empty."}
	ErrTooLarge = &ExtractionError{Message: "PDF too large. Maximum file size is 20MB."}
	ErrUnusable = &ExtractionError{Message: "Failed to parse PDF. Please try a different file or format."}
)

// Parser delegates PDF files to an Extractor.
type Parser struct {
	extractor Extractor
}

// NewParser returns a PDF parser backed by e.
func NewParser(e Extractor) *Parser {
	return &Parser{extractor: e}
}

// Type returns the import file type
func (p *Parser) Type() domain.ImportFileType {
	return domain.FileTypePDF
}

// Parse runs the extractor. Any failure becomes a single row 0 error.
func (p *Parser) Parse(ctx context.Context, f *parser.File) domain.ParseResult {
	select {
	case <-ctx.Done():
		return domain.FailedParse(domain.FileTypePDF, ctx.Err().Error())
	default:
	}

	data, err := f.Bytes()
	if err != nil {
		return domain.FailedParse(domain.FileTypePDF, fmt.Sprintf("PDF upload failed: %v", err))
	}

	result, err := p.extractor.Extract(ctx, f.Name(), data)
	if err != nil {
		return domain.FailedParse(domain.FileTypePDF, failureMessage(err))
	}

	result.FileType = domain.FileTypePDF
	if result.Expenses == nil {
		result.Expenses = []domain.RawExpense{}
	}
	if result.Errors == nil {
		result.Errors = []domain.RowError{}
	}
	return result
}

func failureMessage(err error) string {
	var ee *ExtractionError
	if errors.As(err, &ee) && ee.Message != "" {
		return ee.Message
	}
	return fmt.Sprintf("PDF upload failed: %v", err)
}

// Item is one loosely typed expense as an extraction backend reports it.
type Item struct {
	Description any `json:"description"`
	Amount      any `json:"amount"`
	Date        any `json:"date"`
	Category    any `json:"category"`
	Notes       any `json:"notes"`
}

// Normalize keeps items with a description and a non-zero amount. Amounts
// become magnitudes, a non-string date becomes today and categories are
// lower-cased. TotalRows counts the kept items.
func Normalize(items []Item) domain.ParseResult {
	result := domain.NewParseResult(domain.FileTypePDF)
	for _, it := range items {
		if !parser.Truthy(it.Description) || !parser.Truthy(it.Amount) {
			continue
		}

		description := strings.TrimSpace(parser.FormatRaw(it.Description))
		amount, ok := parser.ParseFloatPrefix(parser.FormatRaw(it.Amount))
		if !ok {
			amount = 0
		}
		amount = math.Abs(amount)
		if amount <= 0 || description == "" {
			continue
		}

		expense := domain.RawExpense{
			Description: description,
			Amount:      amount,
			Date:        domain.Today(),
		}
		if d, ok := it.Date.(string); ok {
			expense.Date = d
		}
		if c, ok := it.Category.(string); ok {
			expense.Category = strings.ToLower(strings.TrimSpace(c))
		}
		if n, ok := it.Notes.(string); ok {
			expense.Notes = n
		}
		result.AddExpense(expense)
	}
	result.TotalRows = len(result.Expenses)
	return result
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
