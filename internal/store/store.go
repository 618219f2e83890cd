// Package store persists committed expenses.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
)

// ErrNotFound is returned when an expense does not exist for the user.
var ErrNotFound = errors.New("expense not found")

// Store is implemented by every expense backend.
type Store interface {
	// ListExpenses returns the user's expenses, newest date first.
	ListExpenses(ctx context.Context, userID string) ([]*domain.Expense, error)
	// CreateExpense assigns ID and CreatedAt when empty, validates and writes e.
	CreateExpense(ctx context.Context, e *domain.Expense) error
}

// Prepare fills the generated fields and validates e before a write.
func Prepare(e *domain.Expense) error {
	if e.UserID == "" {
		return fmt.Errorf("invalid expense: user ID is required")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Currency == "" {
		e.Currency = "USD"
	}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid expense: %w", err)
	}
	return nil
}
