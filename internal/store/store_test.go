package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
)

func newExpense(userID, desc, date string, amount float64) *domain.Expense {
	return &domain.Expense{
		UserID:      userID,
		Description: desc,
		Amount:      amount,
		Date:        date,
		Category:    domain.CategoryFood,
		Source:      domain.Source(domain.FileTypeCSV),
	}
}

// backends runs fn against every Store implementation.
func backends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemory())
	})
	t.Run("sqlite", func(t *testing.T) {
		db, err := OpenSQLite(filepath.Join(t.TempDir(), "data", "expenses.db"))
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		fn(t, db)
	})
}

func TestCreateExpense_AssignsGeneratedFields(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		e := newExpense("u1", "Coffee", "2024-01-15", 4.5)
		require.NoError(t, s.CreateExpense(context.Background(), e))

		assert.NotEmpty(t, e.ID)
		assert.False(t, e.CreatedAt.IsZero())
		assert.Equal(t, "USD", e.Currency)
	})
}

func TestCreateExpense_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(e *domain.Expense)
	}{
		{"missing user", func(e *domain.Expense) { e.UserID = "" }},
		{"blank description", func(e *domain.Expense) { e.Description = "  " }},
		{"zero amount", func(e *domain.Expense) { e.Amount = 0 }},
		{"bad date", func(e *domain.Expense) { e.Date = "01/15/2024" }},
		{"unknown category", func(e *domain.Expense) { e.Category = "groceries" }},
	}

	backends(t, func(t *testing.T, s Store) {
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				e := newExpense("u1", "Coffee", "2024-01-15", 4.5)
				tt.mutate(e)
				err := s.CreateExpense(context.Background(), e)
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid expense")
			})
		}

		list, err := s.ListExpenses(context.Background(), "u1")
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestListExpenses_ScopedAndOrdered(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.CreateExpense(ctx, newExpense("u1", "Older", "2024-01-01", 1)))
		require.NoError(t, s.CreateExpense(ctx, newExpense("u1", "Newer", "2024-03-01", 2)))
		require.NoError(t, s.CreateExpense(ctx, newExpense("u2", "Other user", "2024-02-01", 3)))

		list, err := s.ListExpenses(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Newer", list[0].Description)
		assert.Equal(t, "Older", list[1].Description)

		empty, err := s.ListExpenses(ctx, "nobody")
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)
	})
}

func TestSQLite_RoundTripFields(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "expenses.db"))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	e := newExpense("u1", "Train ticket", "2024-05-02", 12.75)
	e.Category = domain.CategoryTransport
	e.IsAutoCategorized = true
	e.Source = domain.Source(domain.FileTypeOFX)
	e.Notes = "commute"
	e.Currency = "EUR"
	require.NoError(t, db.CreateExpense(ctx, e))

	got, err := db.GetExpense(ctx, "u1", e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.Description, got.Description)
	assert.Equal(t, 12.75, got.Amount)
	assert.Equal(t, domain.CategoryTransport, got.Category)
	assert.True(t, got.IsAutoCategorized)
	assert.Equal(t, domain.Source("ofx"), got.Source)
	assert.Equal(t, "commute", got.Notes)
	assert.Equal(t, "EUR", got.Currency)
	assert.True(t, e.CreatedAt.Equal(got.CreatedAt))

	_, err = db.GetExpense(ctx, "u2", e.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenSQLite_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expenses.db")

	db, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, db.CreateExpense(context.Background(), newExpense("u1", "Persisted", "2024-01-01", 9)))
	require.NoError(t, db.Close())

	db, err = OpenSQLite(path)
	require.NoError(t, err)
	defer db.Close()

	list, err := db.ListExpenses(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Persisted", list[0].Description)
}
