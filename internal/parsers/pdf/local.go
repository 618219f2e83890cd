package pdf

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dslipak/pdf"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/parser"
)

// maxPDFSize is the largest document the local extractor accepts.
const maxPDFSize = 20 * 1024 * 1024

var (
	statementDate   = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{2,4})\b`)
	statementAmount = regexp.MustCompile(`\(?-?\$?\d{1,3}(?:,\d{3})+\.\d{2}\)?|\(?-?\$?\d+\.\d{2}\)?`)
)

// LocalExtractor reads the document's text layer and picks out statement
// lines of the form "<date> <description> <amount>". It needs no network
// access but only understands text-based statements.
type LocalExtractor struct{}

// NewLocalExtractor returns an extractor that works offline.
func NewLocalExtractor() *LocalExtractor {
	return &LocalExtractor{}
}

// Extract implements Extractor.
func (e *LocalExtractor) Extract(ctx context.Context, name string, data []byte) (result domain.ParseResult, err error) {
	if len(data) > maxPDFSize {
		return domain.ParseResult{}, ErrTooLarge
	}

	// The PDF reader panics on some malformed object streams.
	defer func() {
		if r := recover(); r != nil {
			log.Error("pdf reader panicked", "file", name, "panic", r)
			result, err = domain.ParseResult{}, ErrUnusable
		}
	}()

	text, err := plainText(data)
	if err != nil {
		log.Warn("failed to extract pdf text", "file", name, "err", err)
		return domain.ParseResult{}, ErrUnusable
	}
	if strings.TrimSpace(text) == "" {
		return domain.ParseResult{}, ErrNoText
	}

	select {
	case <-ctx.Done():
		return domain.ParseResult{}, ctx.Err()
	default:
	}

	items := StatementItems(truncate(text, MaxTextLength))
	log.Debug("pdf statement lines found", "file", name, "items", len(items))
	return Normalize(items), nil
}

func plainText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	b, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(b); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// StatementItems splits text at each date and reads the first amount that
// follows it. Whatever lies between the two is the description. Text layers
// often lose line breaks, so segments run from one date to the next.
func StatementItems(text string) []Item {
	locs := statementDate.FindAllStringIndex(text, -1)
	items := make([]Item, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		rawDate := text[loc[0]:loc[1]]
		segment := text[loc[1]:end]

		amt := statementAmount.FindStringIndex(segment)
		if amt == nil {
			continue
		}
		description := strings.Join(strings.Fields(segment[:amt[0]]), " ")

		item := Item{
			Description: description,
			Amount:      strings.NewReplacer("$", "", ",", "", "(", "", ")", "").Replace(segment[amt[0]:amt[1]]),
		}
		if date, ok := parser.ParseDate(rawDate); ok {
			item.Date = date
		}
		items = append(items, item)
	}
	return items
}
