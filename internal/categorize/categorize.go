// Package categorize sends parsed expenses to a categorization capability in
// fixed-size batches and merges the returned labels back by index.
package categorize

import (
	"context"
	"fmt"
	"math"

	"github.com/charmbracelet/log"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
)

const (
	// BatchSize is how many expenses are sent per Categorize call.
	BatchSize = 30
	// MaxItemsPerRequest is the most a single request may carry.
	MaxItemsPerRequest = 50
	// DefaultConfidence replaces a missing or zero confidence.
	DefaultConfidence = 0.5
)

// Item is what a categorizer sees of an expense.
type Item struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// Result labels the item at Index within the submitted batch.
type Result struct {
	Index      int     `json:"index"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// Categorizer assigns categories to a batch of items.
type Categorizer interface {
	Categorize(ctx context.Context, items []Item) ([]Result, error)
}

// Categorized is the outcome for one expense. IsAutoCategorized is false when
// no result was merged for it, in which case Category is other.
type Categorized struct {
	Category          domain.Category `json:"category"`
	Confidence        float64         `json:"confidence"`
	IsAutoCategorized bool            `json:"isAutoCategorized"`
}

// Coerce maps a result onto the category enum and clamps its confidence to
// [0, 1]. Labels outside the enum become other.
func Coerce(r Result) (domain.Category, float64) {
	category := domain.Category(r.Category)
	if !domain.ValidateCategory(category) {
		category = domain.CategoryOther
	}
	confidence := r.Confidence
	if confidence == 0 || math.IsNaN(confidence) {
		confidence = DefaultConfidence
	}
	return category, math.Min(1, math.Max(0, confidence))
}

// Dispatch categorizes expenses in batches of BatchSize, in order. A result
// is merged at batchStart+Index when that position exists. The first failing
// batch stops dispatch; merges from earlier batches are kept and the error is
// returned alongside them. The returned slice always has one entry per expense.
func Dispatch(ctx context.Context, c Categorizer, expenses []domain.RawExpense) ([]Categorized, error) {
	out := make([]Categorized, len(expenses))
	for i := range out {
		out[i] = Categorized{Category: domain.CategoryOther}
	}

	for start := 0; start < len(expenses); start += BatchSize {
		end := min(start+BatchSize, len(expenses))

		items := make([]Item, 0, end-start)
		for _, e := range expenses[start:end] {
			items = append(items, Item{Description: e.Description, Amount: e.Amount})
		}

		results, err := c.Categorize(ctx, items)
		if err != nil {
			log.Warn("categorization stopped", "batch_start", start, "err", err)
			return out, fmt.Errorf("failed to categorize expenses %d-%d: %w", start+1, end, err)
		}

		for _, r := range results {
			idx := start + r.Index
			if r.Index < 0 || idx >= len(expenses) {
				continue
			}
			category, confidence := Coerce(r)
			out[idx] = Categorized{Category: category, Confidence: confidence, IsAutoCategorized: true}
		}
	}

	return out, nil
}
