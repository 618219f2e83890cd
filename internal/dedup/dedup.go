// Package dedup finds likely duplicates of an incoming expense among stored
// ones and remembers fingerprints of expenses committed by earlier imports.
package dedup

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/validate"
)

// SimilarityThreshold is the minimum description similarity for a match.
const SimilarityThreshold = 0.8

// Candidate is the part of an expense compared against stored expenses.
type Candidate struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
}

// DuplicateMatch is a stored expense that looks like the candidate.
type DuplicateMatch struct {
	Expense    domain.Expense `json:"expense"`
	Similarity float64        `json:"similarity"`
	Reason     string         `json:"reason"`
}

// FindDuplicates returns stored expenses with the same rounded amount, the
// same calendar day and a description similarity of at least
// SimilarityThreshold, best match first. The result is never nil.
func FindDuplicates(candidate Candidate, existing []domain.Expense) []DuplicateMatch {
	description := Normalize(candidate.Description)
	amount := roundCents(candidate.Amount)
	date := day(candidate.Date)

	matches := []DuplicateMatch{}
	for _, e := range existing {
		if roundCents(e.Amount) != amount {
			continue
		}
		if day(e.Date) != date {
			continue
		}

		similarity := Similarity(description, Normalize(e.Description))
		if similarity < SimilarityThreshold {
			continue
		}

		matches = append(matches, DuplicateMatch{
			Expense:    e,
			Similarity: similarity,
			Reason:     reason(e, similarity),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	return matches
}

func reason(e domain.Expense, similarity float64) string {
	if similarity == 1 {
		return fmt.Sprintf("Exact duplicate: same description, amount (%s), and date",
			validate.FormatCurrency(e.Amount, "USD"))
	}
	return fmt.Sprintf("Similar duplicate (%d%% match): \"%s\" with same amount and date",
		int(math.Floor(similarity*100+0.5)), e.Description)
}

// Similarity is 1 - distance/longer length, both counted in runes. A
// character outside the BMP is one unit, not a UTF-16 surrogate pair. Two
// empty strings are identical.
func Similarity(a, b string) float64 {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// Normalize lower-cases s, collapses whitespace runs and trims it.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func roundCents(amount float64) float64 {
	return validate.RoundAmount(amount)
}

// day returns the calendar-day prefix of an ISO date or timestamp.
func day(date string) string {
	if len(date) > 10 {
		return date[:10]
	}
	return date
}
