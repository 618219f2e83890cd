package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/parser"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/parsers/pdf"
)

// mockParser implements parser.Parser for testing
type mockParser struct {
	ft     domain.ImportFileType
	called bool
}

func (m *mockParser) Type() domain.ImportFileType { return m.ft }

func (m *mockParser) Parse(ctx context.Context, f *parser.File) domain.ParseResult {
	m.called = true
	result := domain.NewParseResult(m.ft)
	result.AddExpense(domain.RawExpense{Description: f.Name(), Amount: 1, Date: "2024-01-01"})
	return result
}

type noopExtractor struct{}

func (noopExtractor) Extract(context.Context, string, []byte) (domain.ParseResult, error) {
	return domain.NewParseResult(domain.FileTypePDF), nil
}

func newFile(t *testing.T, name string, size int) *parser.File {
	t.Helper()
	f, err := parser.NewFile(name, make([]byte, size))
	require.NoError(t, err)
	return f
}

func TestDetectFileType(t *testing.T) {
	tests := []struct {
		name   string
		want   domain.ImportFileType
		wantOK bool
	}{
		{"a.csv", domain.FileTypeCSV, true},
		{"a.XLSX", domain.FileTypeExcel, true},
		{"a.xls", domain.FileTypeExcel, true},
		{"a.json", domain.FileTypeJSON, true},
		{"a.ofx", domain.FileTypeOFX, true},
		{"statement.QFX", domain.FileTypeOFX, true},
		{"scan.pdf", domain.FileTypePDF, true},
		{"report.docx", "", false},
		{"noextension", "", false},
		{"archive.csv.zip", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DetectFileType(tt.name)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateFileSize(t *testing.T) {
	tests := []struct {
		name string
		size int64
		ft   domain.ImportFileType
		want string
	}{
		{"csv at limit", 10 * megabyte, domain.FileTypeCSV, ""},
		{"csv over", 10*megabyte + 1, domain.FileTypeCSV, "File too large. Maximum size for CSV is 10MB."},
		{"excel over", 11 * megabyte, domain.FileTypeExcel, "File too large. Maximum size for Excel is 10MB."},
		{"json over", 6 * megabyte, domain.FileTypeJSON, "File too large. Maximum size for JSON is 5MB."},
		{"ofx over", 6 * megabyte, domain.FileTypeOFX, "File too large. Maximum size for OFX/QFX is 5MB."},
		{"pdf under", 15 * megabyte, domain.FileTypePDF, ""},
		{"pdf over", 21 * megabyte, domain.FileTypePDF, "File too large. Maximum size for PDF is 20MB."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateFileSize(tt.size, tt.ft))
		})
	}
}

func TestParseFile_Unsupported(t *testing.T) {
	r := New(noopExtractor{})

	result := r.ParseFile(context.Background(), newFile(t, "notes.docx", 10))

	assert.Empty(t, result.Expenses)
	assert.Equal(t, []domain.RowError{{Row: 0, Message: UnsupportedMessage}}, result.Errors)
	assert.Equal(t, domain.FileTypeCSV, result.FileType)
}

func TestParseFile_Oversize(t *testing.T) {
	r := New(noopExtractor{})
	mock := &mockParser{ft: domain.FileTypeJSON}
	r.json = mock

	result := r.ParseFile(context.Background(), newFile(t, "big.json", 5*megabyte+1))

	assert.False(t, mock.called)
	assert.Equal(t, domain.FileTypeJSON, result.FileType)
	assert.Equal(t, "File too large. Maximum size for JSON is 5MB.", result.Errors[0].Message)
}

func TestParseFile_Routes(t *testing.T) {
	r := New(noopExtractor{})
	mock := &mockParser{ft: domain.FileTypeOFX}
	r.ofx = mock

	result := r.ParseFile(context.Background(), newFile(t, "bank.qfx", 100))

	assert.True(t, mock.called)
	require.Len(t, result.Expenses, 1)
	assert.Equal(t, "bank.qfx", result.Expenses[0].Description)
}

type panickingParser struct{}

func (panickingParser) Type() domain.ImportFileType { return domain.FileTypeJSON }

func (panickingParser) Parse(context.Context, *parser.File) domain.ParseResult {
	panic("index out of range")
}

func TestParseFile_RecoversParserPanic(t *testing.T) {
	r := New(noopExtractor{})
	r.json = panickingParser{}

	result := r.ParseFile(context.Background(), newFile(t, "broken.json", 10))

	assert.Empty(t, result.Expenses)
	assert.Equal(t, domain.FileTypeJSON, result.FileType)
	assert.Equal(t, []domain.RowError{{Row: 0, Message: "Failed to parse file: index out of range"}}, result.Errors)
}

func TestParseFile_BuiltInCSV(t *testing.T) {
	r := New(pdf.NewLocalExtractor())
	f, err := parser.NewFile("e.csv", []byte("Date,Description,Amount\n2024-01-15,Coffee,$4.50\n"))
	require.NoError(t, err)

	result := r.ParseFile(context.Background(), f)

	require.Len(t, result.Expenses, 1)
	assert.Equal(t, domain.RawExpense{Description: "Coffee", Amount: 4.5, Date: "2024-01-15"}, result.Expenses[0])
}

func TestListTypes(t *testing.T) {
	r := New(noopExtractor{})
	assert.Equal(t, []domain.ImportFileType{
		domain.FileTypeCSV, domain.FileTypeExcel, domain.FileTypeJSON, domain.FileTypeOFX, domain.FileTypePDF,
	}, r.ListTypes())
	assert.Contains(t, SupportedExtensions(), "qfx")
}
