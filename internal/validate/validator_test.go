package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
)

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		want   []AmountWarning
	}{
		{"everyday", 9.99, []AmountWarning{}},
		{"large", 15000, []AmountWarning{{WarningLargeAmount, "Unusually large amount"}}},
		{"excessive decimals", 12.345, []AmountWarning{{WarningExcessiveDecimals, "Amount will be rounded to 2 decimals"}}},
		{"1500 is not a round thousand", 1500, []AmountWarning{}},
		{"round thousand", 1000, []AmountWarning{{WarningPossibleDecimalError, "Did you mean $10.00 instead of $1,000.00?"}}},
		{"typo ceiling", 9000, []AmountWarning{{WarningPossibleDecimalError, "Did you mean $90.00 instead of $9,000.00?"}}},
		{"10000 is not a typo", 10000, []AmountWarning{}},
		{"not a round thousand", 1250, []AmountWarning{}},
		{"large with decimals", 12000.125, []AmountWarning{
			{WarningLargeAmount, "Unusually large amount"},
			{WarningExcessiveDecimals, "Amount will be rounded to 2 decimals"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateAmount(tt.amount))
		})
	}
}

func TestDecimalPlaces(t *testing.T) {
	assert.Equal(t, 0, DecimalPlaces(1500))
	assert.Equal(t, 1, DecimalPlaces(12.50))
	assert.Equal(t, 2, DecimalPlaces(0.07))
	assert.Equal(t, 3, DecimalPlaces(12.345))

	// Variables keep the sum from being folded to an exact constant.
	a, b := 0.1, 0.2
	assert.Equal(t, 17, DecimalPlaces(a+b))
}

func TestRoundAmount(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{12.345, 12.35},
		{1.005, 1.01},
		{2.675, 2.68},
		{-1.005, -1.01},
		{10, 10},
		{0.004, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, RoundAmount(tt.in), "RoundAmount(%v)", tt.in)
	}
}

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		amount float64
		code   string
		want   string
	}{
		{1500, "USD", "$1,500.00"},
		{15, "USD", "$15.00"},
		{-42.5, "USD", "-$42.50"},
		{1234567.891, "EUR", "€1,234,567.89"},
		{1500.6, "JPY", "¥1,501"},
		{99, "MXN", "MX$99.00"},
		{7, "XYZ", "$7.00"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatCurrency(tt.amount, tt.code))
		})
	}
}

func TestConvertToUSD(t *testing.T) {
	assert.Equal(t, 100.0, ConvertToUSD(92, "EUR"))
	assert.Equal(t, 10.0, ConvertToUSD(1495, "JPY"))
	assert.Equal(t, 12.34, ConvertToUSD(12.34, "USD"))
	assert.Equal(t, 5.0, ConvertToUSD(5, "???"))
}

func TestValidateExpenses(t *testing.T) {
	valid := domain.Expense{ID: "a", Description: "Lunch", Amount: 15, Date: "2024-01-15", Category: domain.CategoryFood, Currency: "USD"}

	t.Run("valid batch", func(t *testing.T) {
		second := valid
		second.ID = "b"
		result := ValidateExpenses([]domain.Expense{valid, second})
		assert.True(t, result.Valid())
		assert.Empty(t, result.Warnings)
	})

	t.Run("field errors", func(t *testing.T) {
		bad := domain.Expense{ID: "a", Description: " ", Amount: 0, Date: "01/15/2024", Category: "groceries", Currency: "ZZZ"}
		result := ValidateExpenses([]domain.Expense{valid, bad})

		assert.False(t, result.Valid())
		assert.Empty(t, result.ErrorsAt(0))
		fields := []string{}
		for _, e := range result.ErrorsAt(1) {
			fields = append(fields, e.Field)
		}
		assert.Equal(t, []string{"Description", "Amount", "Date", "Category", "Currency", "ID"}, fields)
	})

	t.Run("amount warnings", func(t *testing.T) {
		typo := valid
		typo.Amount = 2000
		result := ValidateExpenses([]domain.Expense{typo})
		assert.True(t, result.Valid())
		require.Len(t, result.Warnings, 1)
		assert.Equal(t, "Did you mean $20.00 instead of $2,000.00?", result.Warnings[0].Message)
	})
}
