// Package registry detects import file types, enforces size ceilings and
// routes files to the parser for their type.
package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/parser"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/parsers/csv"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/parsers/excel"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/parsers/json"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/parsers/ofx"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/parsers/pdf"
)

// UnsupportedMessage is reported for files whose extension maps to no type.
const UnsupportedMessage = "Unsupported file type. Accepted formats: CSV, Excel (.xlsx/.xls), PDF, JSON, OFX/QFX."

const megabyte = 1024 * 1024

var extensions = map[string]domain.ImportFileType{
	"csv":  domain.FileTypeCSV,
	"xlsx": domain.FileTypeExcel,
	"xls":  domain.FileTypeExcel,
	"json": domain.FileTypeJSON,
	"ofx":  domain.FileTypeOFX,
	"qfx":  domain.FileTypeOFX,
	"pdf":  domain.FileTypePDF,
}

type limit struct {
	label string
	mb    int64
}

var limits = map[domain.ImportFileType]limit{
	domain.FileTypeCSV:   {"CSV", 10},
	domain.FileTypeExcel: {"Excel", 10},
	domain.FileTypePDF:   {"PDF", 20},
	domain.FileTypeJSON:  {"JSON", 5},
	domain.FileTypeOFX:   {"OFX/QFX", 5},
}

// DetectFileType maps a file name's extension to its import type.
func DetectFileType(name string) (domain.ImportFileType, bool) {
	ft, ok := extensions[parser.Extension(name)]
	return ft, ok
}

// SupportedExtensions lists every accepted extension without the dot.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extensions))
	for ext := range extensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// MaxSize returns the size ceiling in bytes for a file type.
func MaxSize(ft domain.ImportFileType) int64 {
	return limits[ft].mb * megabyte
}

// ValidateFileSize returns a user-facing message when size exceeds the
// ceiling for ft, and "" when the file is accepted.
func ValidateFileSize(size int64, ft domain.ImportFileType) string {
	l, ok := limits[ft]
	if !ok || size <= l.mb*megabyte {
		return ""
	}
	return fmt.Sprintf("File too large. Maximum size for %s is %dMB.", l.label, l.mb)
}

// Registry holds one parser per import file type.
type Registry struct {
	csv   parser.Parser
	excel parser.Parser
	json  parser.Parser
	ofx   parser.Parser
	pdf   parser.Parser
}

// New creates a registry with the built-in parsers. PDF files go through
// extractor.
func New(extractor pdf.Extractor) *Registry {
	return &Registry{
		csv:   csv.NewParser(),
		excel: excel.NewParser(),
		json:  json.NewParser(),
		ofx:   ofx.NewParser(),
		pdf:   pdf.NewParser(extractor),
	}
}

// ListTypes returns every supported file type in sorted order.
func (r *Registry) ListTypes() []domain.ImportFileType {
	return []domain.ImportFileType{
		domain.FileTypeCSV, domain.FileTypeExcel, domain.FileTypeJSON, domain.FileTypeOFX, domain.FileTypePDF,
	}
}

func (r *Registry) parserFor(ft domain.ImportFileType) (parser.Parser, bool) {
	switch ft {
	case domain.FileTypeCSV:
		return r.csv, true
	case domain.FileTypeExcel:
		return r.excel, true
	case domain.FileTypeJSON:
		return r.json, true
	case domain.FileTypeOFX:
		return r.ofx, true
	case domain.FileTypePDF:
		return r.pdf, true
	}
	return nil, false
}

// ParseFile detects the type, checks the size and parses f. Every failure,
// a panicking parser included, is reported inside the returned result.
func (r *Registry) ParseFile(ctx context.Context, f *parser.File) (result domain.ParseResult) {
	ft, ok := DetectFileType(f.Name())
	if !ok {
		log.Debug("unsupported file type", "file", f.Name())
		return domain.FailedParse(domain.FileTypeCSV, UnsupportedMessage)
	}

	if msg := ValidateFileSize(f.Size(), ft); msg != "" {
		return domain.FailedParse(ft, msg)
	}

	p, ok := r.parserFor(ft)
	if !ok {
		return domain.FailedParse(ft, UnsupportedMessage)
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("parser panicked", "file", f.Name(), "type", ft, "panic", rec)
			result = domain.FailedParse(ft, fmt.Sprintf("Failed to parse file: %v", rec))
		}
	}()

	result = p.Parse(ctx, f)
	log.Debug("parsed file", "file", f.Name(), "type", ft,
		"expenses", len(result.Expenses), "errors", len(result.Errors), "rows", result.TotalRows)
	return result
}
