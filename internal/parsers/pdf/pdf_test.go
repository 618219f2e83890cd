package pdf

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/parser"
)

type stubExtractor struct {
	result domain.ParseResult
	err    error
}

func (s stubExtractor) Extract(context.Context, string, []byte) (domain.ParseResult, error) {
	return s.result, s.err
}

func parseWith(t *testing.T, e Extractor) domain.ParseResult {
	t.Helper()
	f, err := parser.NewFile("statement.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	return NewParser(e).Parse(context.Background(), f)
}

func TestParse_Failures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"extraction error verbatim", ErrNoText, "Could not extract text from PDF. The file may be image-based or empty."},
		{"wrapped extraction error", errors.Join(errors.New("ctx"), &ExtractionError{Message: "quota exceeded"}), "quota exceeded"},
		{"empty extraction message", &ExtractionError{}, "PDF upload failed: "},
		{"transport error", errors.New("connection refused"), "PDF upload failed: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseWith(t, stubExtractor{err: tt.err})
			assert.Equal(t, []domain.RowError{{Row: 0, Message: tt.want}}, result.Errors)
			assert.Empty(t, result.Expenses)
			assert.Equal(t, domain.FileTypePDF, result.FileType)
		})
	}
}

func TestParse_PassesResultThrough(t *testing.T) {
	result := parseWith(t, stubExtractor{result: domain.ParseResult{
		Expenses:  []domain.RawExpense{{Description: "Hotel", Amount: 210, Date: "2024-05-02"}},
		TotalRows: 1,
	}})

	assert.Equal(t, domain.FileTypePDF, result.FileType)
	assert.Len(t, result.Expenses, 1)
	assert.NotNil(t, result.Errors)
}

func TestNormalize(t *testing.T) {
	result := Normalize([]Item{
		{Description: "  Taxi ", Amount: "-23.40", Date: "2024-03-01", Category: " Transport", Notes: "airport"},
		{Description: "Museum", Amount: 15.0, Date: 20240301.0},
		{Description: "", Amount: 5.0},
		{Description: "Free sample", Amount: 0.0},
		{Description: "Unreadable", Amount: "n/a"},
		{Description: "   ", Amount: 3.0},
	})

	require.Len(t, result.Expenses, 2)
	assert.Equal(t, domain.RawExpense{Description: "Taxi", Amount: 23.4, Date: "2024-03-01", Category: "transport", Notes: "airport"}, result.Expenses[0])
	assert.Equal(t, domain.Today(), result.Expenses[1].Date)
	assert.Equal(t, 2, result.TotalRows)
	assert.Empty(t, result.Errors)
}

func TestStatementItems(t *testing.T) {
	text := "Account Summary Page 1\n" +
		"01/15/2024 STARBUCKS #123 SEATTLE $4.50 1,204.50\n" +
		"2024-01-16 Whole   Foods Market (1,234.56)\n" +
		"01/17/2024 Opening balance carried over\n" +
		"1/18/24 Parking 6.00"

	items := StatementItems(text)

	require.Len(t, items, 3)
	assert.Equal(t, Item{Description: "STARBUCKS #123 SEATTLE", Amount: "4.50", Date: "2024-01-15"}, items[0])
	assert.Equal(t, Item{Description: "Whole Foods Market", Amount: "1234.56", Date: "2024-01-16"}, items[1])
	assert.Equal(t, "Parking", items[2].Description)
	assert.Equal(t, "2024-01-18", items[2].Date)
}

func TestLocalExtractor_Rejects(t *testing.T) {
	e := NewLocalExtractor()

	_, err := e.Extract(context.Background(), "big.pdf", make([]byte, maxPDFSize+1))
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = e.Extract(context.Background(), "junk.pdf", []byte("definitely not a pdf"))
	assert.ErrorIs(t, err, ErrUnusable)
}

func TestRemoteExtractor(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			f, hdr, err := r.FormFile("file")
			require.NoError(t, err)
			defer f.Close()
			body, _ := io.ReadAll(f)
			assert.Equal(t, "statement.pdf", hdr.Filename)
			assert.Equal(t, "%PDF-1.4", string(body))

			_ = json.NewEncoder(w).Encode(map[string]any{
				"expenses": []map[string]any{
					{"description": "Flight", "amount": "-320.10", "date": "2024-06-01", "category": "Travel"},
					{"description": "Nothing", "amount": 0},
				},
			})
		}))
		defer srv.Close()

		e, err := NewRemoteExtractor(RemoteConfig{Endpoint: srv.URL, APIKey: "secret"})
		require.NoError(t, err)
		result := parseWith(t, e)

		require.Len(t, result.Expenses, 1)
		assert.Equal(t, domain.RawExpense{Description: "Flight", Amount: 320.1, Date: "2024-06-01", Category: "travel"}, result.Expenses[0])
		assert.Equal(t, 1, result.TotalRows)
	})

	t.Run("service error message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":"PDF too large. Maximum file size is 20MB."}`))
		}))
		defer srv.Close()

		e, err := NewRemoteExtractor(RemoteConfig{Endpoint: srv.URL})
		require.NoError(t, err)
		result := parseWith(t, e)
		assert.Equal(t, "PDF too large. Maximum file size is 20MB.", result.Errors[0].Message)
	})

	t.Run("service error without body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		e, err := NewRemoteExtractor(RemoteConfig{Endpoint: srv.URL})
		require.NoError(t, err)
		result := parseWith(t, e)
		assert.Equal(t, "Failed to parse PDF", result.Errors[0].Message)
	})

	t.Run("unreachable", func(t *testing.T) {
		e, err := NewRemoteExtractor(RemoteConfig{Endpoint: "http://127.0.0.1:1"})
		require.NoError(t, err)
		result := parseWith(t, e)
		assert.True(t, strings.HasPrefix(result.Errors[0].Message, "PDF upload failed: "))
	})

	t.Run("missing endpoint", func(t *testing.T) {
		_, err := NewRemoteExtractor(RemoteConfig{})
		assert.Error(t, err)
	})
}
