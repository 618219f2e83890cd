// Package ofx parses OFX and QFX bank exports into candidate expenses.
//
// Extraction is layered: a structured ofxgo decode is tried first, then a
// regex scan of well-formed <STMTTRN> blocks, then a line-oriented SGML scan
// for exports that omit closing tags. Every strategy feeds the same
// conversion, so deposits are skipped and descriptions cleaned identically.
package ofx

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/parser"
)

// Parser implements OFX/QFX parsing. Stateless and safe for concurrent use.
type Parser struct {
	strategies []strategy
}

var parserInstance = &Parser{
	strategies: []strategy{structuredStrategy{}, blockStrategy{}, sgmlStrategy{}},
}

// NewParser returns the shared OFX parser instance.
func NewParser() *Parser {
	return parserInstance
}

// Type returns the import file type
func (p *Parser) Type() domain.ImportFileType {
	return domain.FileTypeOFX
}

// transaction is one <STMTTRN> entry with its fields still as text.
type transaction struct {
	trnType string
	amount  string
	name    string
	memo    string
	payee   string
	posted  string
}

// description picks NAME, then MEMO, then PAYEE.
func (t transaction) description() string {
	for _, s := range []string{t.name, t.memo, t.payee} {
		if s != "" {
			return s
		}
	}
	return ""
}

// dialect holds the diagnostics a strategy reports.
type dialect struct {
	invalidAmount func(raw string) string
	noDescription string
	// reportEmpty adds a file-level error when nothing at all was produced.
	reportEmpty bool
}

var blockDialect = dialect{
	invalidAmount: func(raw string) string { return fmt.Sprintf("Invalid amount: %q", raw) },
	noDescription: "No description found in transaction",
}

var sgmlDialect = dialect{
	invalidAmount: func(string) string { return "Invalid amount" },
	noDescription: "No description found",
	reportEmpty:   true,
}

// strategy extracts transactions from the document text. ok is false when
// the strategy does not apply and the next one should be tried.
type strategy interface {
	name() string
	extract(text string) (txns []transaction, d dialect, ok bool)
}

// Parse runs the strategies in order and converts the first applicable result.
func (p *Parser) Parse(ctx context.Context, f *parser.File) domain.ParseResult {
	select {
	case <-ctx.Done():
		return domain.FailedParse(domain.FileTypeOFX, ctx.Err().Error())
	default:
	}

	text, err := f.Text()
	if err != nil {
		return domain.FailedParse(domain.FileTypeOFX, fmt.Sprintf("Failed to parse OFX file: %v", err))
	}

	for _, s := range p.strategies {
		txns, d, ok := s.extract(text)
		if !ok {
			continue
		}
		log.Debug("ofx strategy selected", "file", f.Name(), "strategy", s.name(), "transactions", len(txns))
		return convert(txns, d)
	}

	return domain.FailedParse(domain.FileTypeOFX, "No transactions found in OFX/QFX file.")
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	bankPrefix    = regexp.MustCompile(`(?i)^(POS |DEBIT |ACH |CHECK |WIRE )`)
)

// CleanDescription collapses whitespace and strips one bank-generated prefix.
func CleanDescription(name string) string {
	s := whitespaceRun.ReplaceAllString(name, " ")
	s = bankPrefix.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// isDeposit reports transaction types that are income rather than expenses.
func isDeposit(trnType string) bool {
	return trnType == "CREDIT" || trnType == "DEP"
}

func convert(txns []transaction, d dialect) domain.ParseResult {
	result := domain.NewParseResult(domain.FileTypeOFX)
	result.TotalRows = len(txns)

	for i, txn := range txns {
		row := i + 1
		if isDeposit(txn.trnType) {
			continue
		}

		amount, ok := parser.ParseFloatPrefix(txn.amount)
		if !ok || amount == 0 {
			result.AddError(row, d.invalidAmount(txn.amount))
			continue
		}

		name := txn.description()
		if name == "" {
			result.AddError(row, d.noDescription)
			continue
		}

		date, ok := parser.ParseCompactDate(txn.posted)
		if !ok {
			date = domain.Today()
		}

		result.AddExpense(domain.RawExpense{
			Description: CleanDescription(name),
			Amount:      math.Abs(amount),
			Date:        date,
		})
	}

	if d.reportEmpty && len(result.Expenses) == 0 && len(result.Errors) == 0 {
		result.AddError(0, "No transactions found in OFX/QFX file.")
	}

	return result
}
