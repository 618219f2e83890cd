package transform

import (
	"fmt"
	"strings"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/categorize"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
)

// DefaultCurrency is stamped on imported expenses when none is configured.
const DefaultCurrency = "USD"

// Input is one reviewed record ready to become an expense.
type Input struct {
	UserID   string
	Raw      domain.RawExpense
	AI       categorize.Categorized
	FileType domain.ImportFileType
	Currency string
	// Override, when set, replaces the resolved category.
	Override domain.Category
}

// ResolveCategory picks the AI category when one was merged, then the
// category the file carried, then other. Values outside the enum become other.
func ResolveCategory(ai categorize.Categorized, parsed string) domain.Category {
	if ai.IsAutoCategorized && domain.ValidateCategory(ai.Category) {
		return ai.Category
	}
	if strings.TrimSpace(parsed) != "" {
		return domain.ParseCategory(parsed)
	}
	return domain.CategoryOther
}

// ToExpense builds the expense to persist. ID and CreatedAt are left for
// the store to assign.
func ToExpense(in Input) (*domain.Expense, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}

	category := ResolveCategory(in.AI, in.Raw.Category)
	auto := in.AI.IsAutoCategorized
	if in.Override != "" {
		if !domain.ValidateCategory(in.Override) {
			return nil, fmt.Errorf("invalid category override: %s", in.Override)
		}
		category = in.Override
		auto = false
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}

	return &domain.Expense{
		UserID:            in.UserID,
		Description:       strings.TrimSpace(in.Raw.Description),
		Amount:            in.Raw.Amount,
		Date:              in.Raw.Date,
		Category:          category,
		Currency:          currency,
		IsAutoCategorized: auto,
		Source:            domain.SourceFromFileType(in.FileType),
		Notes:             in.Raw.Notes,
	}, nil
}
