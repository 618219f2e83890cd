package validate

import (
	"fmt"
	"strings"
	"time"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
)

// ValidationResult contains all validation errors and warnings for a batch
// of expenses about to be stored
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// ValidationError represents a validation error
type ValidationError struct {
	Index   int // position in the batch
	Field   string
	Value   string
	Message string
}

// ValidationWarning represents a non-critical validation issue
type ValidationWarning struct {
	Index   int
	Field   string
	Value   string
	Message string
}

// Valid reports whether no errors were found.
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// ErrorsAt returns the errors recorded for one batch position.
func (r *ValidationResult) ErrorsAt(index int) []ValidationError {
	var errs []ValidationError
	for _, e := range r.Errors {
		if e.Index == index {
			errs = append(errs, e)
		}
	}
	return errs
}

// ValidateExpenses checks each expense's fields and the batch for duplicate
// IDs. Amount warnings are carried over as warnings and never fail a record.
func ValidateExpenses(expenses []domain.Expense) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationWarning{},
	}

	ids := make(map[string]bool)
	for i, e := range expenses {
		if strings.TrimSpace(e.Description) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Index:   i,
				Field:   "Description",
				Message: "expense description cannot be empty",
			})
		}

		if e.Amount <= 0 {
			result.Errors = append(result.Errors, ValidationError{
				Index:   i,
				Field:   "Amount",
				Value:   fmt.Sprintf("%v", e.Amount),
				Message: "expense amount must be greater than zero",
			})
		} else {
			for _, w := range ValidateAmount(e.Amount) {
				result.Warnings = append(result.Warnings, ValidationWarning{
					Index:   i,
					Field:   "Amount",
					Value:   fmt.Sprintf("%v", e.Amount),
					Message: w.Message,
				})
			}
		}

		if _, err := time.Parse("2006-01-02", e.Date); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Index:   i,
				Field:   "Date",
				Value:   e.Date,
				Message: fmt.Sprintf("invalid date format (expected YYYY-MM-DD): %v", err),
			})
		}

		if !domain.ValidateCategory(e.Category) {
			result.Errors = append(result.Errors, ValidationError{
				Index:   i,
				Field:   "Category",
				Value:   string(e.Category),
				Message: fmt.Sprintf("invalid category: %s", e.Category),
			})
		}

		if _, ok := Currencies[e.Currency]; !ok {
			result.Errors = append(result.Errors, ValidationError{
				Index:   i,
				Field:   "Currency",
				Value:   e.Currency,
				Message: fmt.Sprintf("unsupported currency: %s", e.Currency),
			})
		}

		// Check for duplicate IDs
		if e.ID != "" {
			if ids[e.ID] {
				result.Errors = append(result.Errors, ValidationError{
					Index:   i,
					Field:   "ID",
					Value:   e.ID,
					Message: "duplicate expense ID",
				})
			}
			ids[e.ID] = true
		}
	}

	return result
}
