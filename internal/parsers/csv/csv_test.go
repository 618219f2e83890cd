package csv

import (
	"context"
	"strings"
	"testing"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/parser"
)

func parse(t *testing.T, content string) domain.ParseResult {
	t.Helper()
	f, err := parser.NewFile("test.csv", []byte(content))
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	return NewParser().Parse(context.Background(), f)
}

func TestType(t *testing.T) {
	if got := NewParser().Type(); got != domain.FileTypeCSV {
		t.Errorf("Type() = %q, want %q", got, domain.FileTypeCSV)
	}
}

func TestParse_MixedRows(t *testing.T) {
	result := parse(t, "Date,Merchant,Amount\n2024-01-02,Grocery Store,$45.67\n,Bad Row,abc\n")

	if len(result.Expenses) != 1 {
		t.Fatalf("len(Expenses) = %d, want 1", len(result.Expenses))
	}
	got := result.Expenses[0]
	if got.Description != "Grocery Store" || got.Amount != 45.67 || got.Date != "2024-01-02" {
		t.Errorf("Expenses[0] = %+v", got)
	}

	if len(result.Errors) != 1 {
		t.Fatalf("len(Errors) = %d, want 1", len(result.Errors))
	}
	if result.Errors[0].Row != 3 {
		t.Errorf("Errors[0].Row = %d, want 3", result.Errors[0].Row)
	}
	if result.Errors[0].Message != `Invalid amount: "abc"` {
		t.Errorf("Errors[0].Message = %q", result.Errors[0].Message)
	}
	if result.TotalRows != 2 {
		t.Errorf("TotalRows = %d, want 2", result.TotalRows)
	}
}

// "Amt" is not an amount candidate, neither exactly nor as a substring.
func TestParse_AbbreviatedAmountHeader(t *testing.T) {
	result := parse(t, "Date,Merchant,Amt\n2024-01-02,Grocery Store,$45.67\n")

	if len(result.Expenses) != 0 {
		t.Errorf("len(Expenses) = %d, want 0", len(result.Expenses))
	}
	if len(result.Errors) != 1 {
		t.Fatalf("len(Errors) = %d, want 1", len(result.Errors))
	}
	want := domain.RowError{Row: 0, Message: "Could not find required columns. Found: Date, Merchant, Amt. Need at least an amount and description column."}
	if result.Errors[0] != want {
		t.Errorf("Errors[0] = %+v, want %+v", result.Errors[0], want)
	}
	if result.TotalRows != 0 {
		t.Errorf("TotalRows = %d, want 0", result.TotalRows)
	}
}

func TestParse_NumericAndQuotedCells(t *testing.T) {
	content := strings.Join([]string{
		`Description,Amount,Category,Posted Date`,
		`"Dinner, with friends",-32.10,Food,01/05/2024`,
		`"Say ""hi""",(12.00),,3/4/24`,
		`123,5,,`,
	}, "\n")

	result := parse(t, content)

	if len(result.Errors) != 0 {
		t.Fatalf("Errors = %+v, want none", result.Errors)
	}
	want := []domain.RawExpense{
		{Description: "Dinner, with friends", Amount: 32.1, Date: "2024-01-05", Category: "food"},
		{Description: `Say "hi"`, Amount: 12, Date: "2024-03-04"},
		{Description: "123", Amount: 5, Date: domain.Today()},
	}
	for i, w := range want {
		if result.Expenses[i] != w {
			t.Errorf("Expenses[%d] = %+v, want %+v", i, result.Expenses[i], w)
		}
	}
}

func TestParse_FileLevelErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"empty file", "", "No data found in CSV"},
		{"header only", "Date,Description,Amount\n", "No data found in CSV"},
		{
			name:    "missing amount column",
			content: "When,Description\n2024-01-01,Coffee\n",
			want:    "Could not find required columns. Found: When, Description. Need at least an amount and description column.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parse(t, tt.content)
			if len(result.Errors) != 1 || result.Errors[0].Row != 0 || result.Errors[0].Message != tt.want {
				t.Errorf("Errors = %+v, want single row-0 %q", result.Errors, tt.want)
			}
			if len(result.Expenses) != 0 {
				t.Errorf("Expenses = %+v, want none", result.Expenses)
			}
		})
	}
}

func TestParse_RowErrorOrder(t *testing.T) {
	content := "Date,Description,Amount\nbad,,0\nbad,,7\nbad,Taxi,7\n"

	result := parse(t, content)

	want := []domain.RowError{
		{Row: 2, Message: `Invalid amount: "0"`},
		{Row: 3, Message: "Empty description"},
		{Row: 4, Message: `Invalid date: "bad"`},
	}
	if len(result.Errors) != len(want) {
		t.Fatalf("Errors = %+v, want %+v", result.Errors, want)
	}
	for i := range want {
		if result.Errors[i] != want[i] {
			t.Errorf("Errors[%d] = %+v, want %+v", i, result.Errors[i], want[i])
		}
	}
}

func TestParse_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f, _ := parser.NewFile("x.csv", []byte("Description,Amount\nA,1\n"))
	result := NewParser().Parse(ctx, f)

	if len(result.Expenses) != 0 || len(result.Errors) != 1 {
		t.Errorf("cancelled parse = %+v, want a single error", result)
	}
}

func TestReadTable_DuplicateHeaders(t *testing.T) {
	table, err := ReadTable(strings.NewReader("Amount,Amount,Memo\n1,2,x\n"))
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if got := strings.Join(table.Headers, "|"); got != "Amount|Amount_1|Memo" {
		t.Errorf("Headers = %q", got)
	}
	if table.Rows[0]["Amount_1"] != 2.0 {
		t.Errorf("Rows[0][Amount_1] = %v, want 2", table.Rows[0]["Amount_1"])
	}
}
