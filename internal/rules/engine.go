// Package rules provides a YAML-based keyword engine for expense
// categorization. It works offline and implements categorize.Categorizer.
package rules

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/categorize"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
)

//go:embed rules.yaml
var embeddedRules []byte

// MatchType defines how patterns are matched against expense descriptions
type MatchType string

const (
	// MatchTypeExact requires the pattern to match the entire description exactly
	MatchTypeExact MatchType = "exact"
	// MatchTypeContains requires the pattern to be a substring of the description
	MatchTypeContains MatchType = "contains"
)

// DefaultConfidence is reported for rules that do not set one.
const DefaultConfidence = 0.8

// Rule represents a single categorization rule.
//
// Rules should be created via:
//   - YAML loading: NewEngine, LoadEmbedded, LoadFromFile
//   - Programmatic construction: NewRule constructor
//
// Both paths check the same invariants:
//   - Priority in range [0, 999]
//   - Confidence in range [0.0, 1.0], where 0 means DefaultConfidence
//   - Pattern must not be empty after trimming
//   - MatchType must be "exact" or "contains"
//   - Category must be a valid domain.Category
type Rule struct {
	Name       string    `yaml:"name"`
	Pattern    string    `yaml:"pattern"`
	MatchType  MatchType `yaml:"match_type"`
	Priority   int       `yaml:"priority"`
	Category   string    `yaml:"category"`
	Confidence float64   `yaml:"confidence"`
}

// NewRule creates a validated rule.
func NewRule(name, pattern string, matchType MatchType, priority int, category string, confidence float64) (*Rule, error) {
	r := Rule{
		Name:       name,
		Pattern:    pattern,
		MatchType:  matchType,
		Priority:   priority,
		Category:   category,
		Confidence: confidence,
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r Rule) validate() error {
	if !domain.ValidateCategory(domain.Category(r.Category)) {
		return fmt.Errorf("invalid category %q", r.Category)
	}
	if r.Priority < 0 || r.Priority > 999 {
		return fmt.Errorf("priority must be in [0,999], got %d", r.Priority)
	}
	if r.Confidence < 0.0 || r.Confidence > 1.0 {
		return fmt.Errorf("confidence must be in [0,1], got %f", r.Confidence)
	}
	if r.MatchType != MatchTypeExact && r.MatchType != MatchTypeContains {
		return fmt.Errorf("invalid match_type %q (must be 'exact' or 'contains')", r.MatchType)
	}
	if strings.TrimSpace(r.Pattern) == "" {
		return fmt.Errorf("pattern cannot be empty")
	}
	return nil
}

// RuleSet represents the top-level YAML structure
type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

// Engine performs rule matching on expense descriptions
type Engine struct {
	rules []Rule // Sorted by priority (highest first)
}

// MatchResult contains the result of applying a rule
type MatchResult struct {
	Category   domain.Category
	Confidence float64
	RuleName   string // For debugging
}

// NewEngine creates a rules engine from YAML data
func NewEngine(rulesData []byte) (*Engine, error) {
	var ruleSet RuleSet
	if err := yaml.Unmarshal(rulesData, &ruleSet); err != nil {
		return nil, fmt.Errorf("failed to parse YAML rules (check syntax, indentation, and field names): %w", err)
	}

	for i, rule := range ruleSet.Rules {
		if err := rule.validate(); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, rule.Name, err)
		}
	}

	// SliceStable keeps YAML order for equal priorities so matching is deterministic.
	sortedRules := make([]Rule, len(ruleSet.Rules))
	copy(sortedRules, ruleSet.Rules)
	sort.SliceStable(sortedRules, func(i, j int) bool {
		return sortedRules[i].Priority > sortedRules[j].Priority
	})

	return &Engine{
		rules: sortedRules,
	}, nil
}

// LoadEmbedded loads the embedded rules.yaml file
func LoadEmbedded() (*Engine, error) {
	engine, err := NewEngine(embeddedRules)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded rules (possible binary corruption): %w", err)
	}
	return engine, nil
}

// LoadFromFile loads rules from a filesystem path
func LoadFromFile(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	engine, err := NewEngine(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules from %q: %w", path, err)
	}
	return engine, nil
}

// Match applies rules to a description and returns the first match.
// Rules are evaluated in priority order (highest first), ties in YAML order.
// Returns (nil, false) if no rules match.
func (e *Engine) Match(description string) (*MatchResult, bool) {
	normalizedDesc := strings.ToLower(strings.TrimSpace(description))

	for _, rule := range e.rules {
		normalizedPattern := strings.ToLower(strings.TrimSpace(rule.Pattern))

		matched := false
		switch rule.MatchType {
		case MatchTypeExact:
			matched = normalizedDesc == normalizedPattern
		case MatchTypeContains:
			matched = strings.Contains(normalizedDesc, normalizedPattern)
		}

		if matched {
			confidence := rule.Confidence
			if confidence == 0 {
				confidence = DefaultConfidence
			}
			return &MatchResult{
				Category:   domain.Category(rule.Category),
				Confidence: confidence,
				RuleName:   rule.Name,
			}, true
		}
	}

	return nil, false
}

// Categorize implements categorize.Categorizer. Items no rule matches get no
// result and so stay uncategorized.
func (e *Engine) Categorize(ctx context.Context, items []categorize.Item) ([]categorize.Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	results := make([]categorize.Result, 0, len(items))
	for i, item := range items {
		if m, ok := e.Match(item.Description); ok {
			results = append(results, categorize.Result{
				Index:      i,
				Category:   string(m.Category),
				Confidence: m.Confidence,
			})
		}
	}
	return results, nil
}

// GetRules returns a copy of the rules in priority order.
func (e *Engine) GetRules() []Rule {
	result := make([]Rule, len(e.rules))
	copy(result, e.rules)
	return result
}
