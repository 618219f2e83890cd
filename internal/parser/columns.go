package parser

import "strings"

// Candidate header names per semantic role, in priority order.
var (
	AmountColumns      = []string{"amount", "total", "price", "cost", "value", "debit"}
	DescriptionColumns = []string{"description", "desc", "name", "memo", "details", "merchant", "payee", "transaction"}
	DateColumns        = []string{"date", "transaction_date", "trans_date", "posted_date", "transaction date", "posted date"}
	CategoryColumns    = []string{"category", "type", "tag", "group"}
)

// FindColumn resolves a semantic role to one of headers. An exact
// case-insensitive match on any candidate wins over a substring match; within
// each pass candidates are tried in priority order. The original header string
// is returned so callers can index rows with it.
func FindColumn(headers, candidates []string) (string, bool) {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}

	for _, candidate := range candidates {
		for i, h := range normalized {
			if h == candidate {
				return headers[i], true
			}
		}
	}

	for _, candidate := range candidates {
		for i, h := range normalized {
			if strings.Contains(h, candidate) {
				return headers[i], true
			}
		}
	}

	return "", false
}
