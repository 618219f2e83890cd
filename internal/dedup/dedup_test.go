package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
)

func stored(id, description string, amount float64, date string) domain.Expense {
	return domain.Expense{ID: id, Description: description, Amount: amount, Date: date, Category: domain.CategoryFood, Currency: "USD"}
}

func TestFindDuplicates_Exact(t *testing.T) {
	existing := []domain.Expense{stored("1", "  Starbucks   COFFEE ", 5.50, "2024-03-01T10:00:00Z")}

	matches := FindDuplicates(Candidate{Description: "Starbucks Coffee", Amount: 5.50, Date: "2024-03-01"}, existing)

	require.Len(t, matches, 1)
	assert.Equal(t, 1.0, matches[0].Similarity)
	assert.Equal(t, "Exact duplicate: same description, amount ($5.50), and date", matches[0].Reason)
	assert.Equal(t, "1", matches[0].Expense.ID)
}

func TestFindDuplicates_AmountMustMatch(t *testing.T) {
	candidate := Candidate{Description: "Starbucks Coffee", Amount: 5.50, Date: "2024-03-01"}

	assert.Empty(t, FindDuplicates(candidate, []domain.Expense{stored("1", "Starbucks Coffee", 5.51, "2024-03-01")}))
	assert.Len(t, FindDuplicates(candidate, []domain.Expense{stored("1", "Starbucks Coffee", 5.504, "2024-03-01")}), 1)
}

func TestFindDuplicates_DateMustMatch(t *testing.T) {
	candidate := Candidate{Description: "Rent", Amount: 1200, Date: "2024-03-01"}

	assert.Empty(t, FindDuplicates(candidate, []domain.Expense{stored("1", "Rent", 1200, "2024-03-02")}))
}

func TestFindDuplicates_FuzzyAndOrdering(t *testing.T) {
	existing := []domain.Expense{
		stored("far", "Whole Foods", 5.5, "2024-03-01"),
		stored("close", "Starbucks Cofee", 5.5, "2024-03-01"),
		stored("exact", "starbucks coffee", 5.5, "2024-03-01"),
		stored("short", "Starbucks", 5.5, "2024-03-01"),
	}

	matches := FindDuplicates(Candidate{Description: "Starbucks Coffee", Amount: 5.5, Date: "2024-03-01"}, existing)

	require.Len(t, matches, 2)
	assert.Equal(t, "exact", matches[0].Expense.ID)
	assert.Equal(t, "close", matches[1].Expense.ID)
	assert.InDelta(t, 1-1.0/16, matches[1].Similarity, 1e-9)
	assert.Equal(t, `Similar duplicate (94% match): "Starbucks Cofee" with same amount and date`, matches[1].Reason)
}

func TestFindDuplicates_NoExisting(t *testing.T) {
	matches := FindDuplicates(Candidate{Description: "x", Amount: 1, Date: "2024-01-01"}, nil)
	assert.NotNil(t, matches)
	assert.Empty(t, matches)
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 1},
		{"abc", "", 0},
		{"kitten", "sitting", 1 - 3.0/7},
		{"café", "cafe", 0.75},
		{"same", "same", 1},
		// An emoji outside the BMP is one rune, not a surrogate pair.
		{"cafe 🍕", "cafe 🍔", 1 - 1.0/6},
	}

	for _, tt := range tests {
		t.Run(tt.a+"|"+tt.b, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "uber trip help.uber.com", Normalize("  UBER\tTrip \n help.uber.com "))
}
