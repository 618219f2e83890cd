// Package domain holds the expense import data model shared by parsers, the
// review pipeline and the stores.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Category represents the closed expense category enum.
// Use ValidateCategory or ParseCategory before trusting external input.
type Category string

const (
	CategoryFood          Category = "food"
	CategoryTransport     Category = "transport"
	CategoryHousing       Category = "housing"
	CategoryEntertainment Category = "entertainment"
	CategoryUtilities     Category = "utilities"
	CategoryHealthcare    Category = "healthcare"
	CategoryEducation     Category = "education"
	CategoryShopping      Category = "shopping"
	CategorySubscriptions Category = "subscriptions"
	CategoryTravel        Category = "travel"
	CategoryPersonal      Category = "personal"
	CategoryOther         Category = "other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryFood, CategoryTransport, CategoryHousing, CategoryEntertainment,
	CategoryUtilities, CategoryHealthcare, CategoryEducation, CategoryShopping,
	CategorySubscriptions, CategoryTravel, CategoryPersonal, CategoryOther,
}

var categoryLabels = map[Category]string{
	CategoryFood:          "Food & Dining",
	CategoryTransport:     "Transport",
	CategoryHousing:       "Housing",
	CategoryEntertainment: "Entertainment",
	CategoryUtilities:     "Utilities",
	CategoryHealthcare:    "Healthcare",
	CategoryEducation:     "Education",
	CategoryShopping:      "Shopping",
	CategorySubscriptions: "Subscriptions",
	CategoryTravel:        "Travel",
	CategoryPersonal:      "Personal",
	CategoryOther:         "Other",
}

// ValidateCategory checks if category is one of the known values
func ValidateCategory(c Category) bool {
	_, ok := categoryLabels[c]
	return ok
}

// ParseCategory normalizes s and coerces anything outside the enum to CategoryOther.
func ParseCategory(s string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if ValidateCategory(c) {
		return c
	}
	return CategoryOther
}

// Label returns the display label, falling back to the raw value.
func (c Category) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

// ImportFileType is the closed set of formats the dispatcher accepts.
type ImportFileType string

const (
	FileTypeCSV   ImportFileType = "csv"
	FileTypeExcel ImportFileType = "excel"
	FileTypePDF   ImportFileType = "pdf"
	FileTypeJSON  ImportFileType = "json"
	FileTypeOFX   ImportFileType = "ofx"
)

// Source records where a stored expense came from.
type Source string

const (
	SourceManual Source = "manual"
)

// SourceFromFileType maps an import file type to the stored expense source.
func SourceFromFileType(t ImportFileType) Source {
	if t == "" {
		return Source(FileTypeCSV)
	}
	return Source(t)
}

// RawExpense is a parser-produced candidate expense prior to persistence.
// Amount is always a positive magnitude; Date is YYYY-MM-DD.
type RawExpense struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
	Category    string  `json:"category,omitempty"`
	Notes       string  `json:"notes,omitempty"`
}

// RowError is a row-addressable parse diagnostic. Row 0 marks a file-level error.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ParseResult is the common output of every format parser.
type ParseResult struct {
	Expenses  []RawExpense   `json:"expenses"`
	Errors    []RowError     `json:"errors"`
	TotalRows int            `json:"totalRows"`
	FileType  ImportFileType `json:"fileType"`
}

// NewParseResult returns an empty result with non-nil slices so it serializes as [] rather than null.
func NewParseResult(fileType ImportFileType) ParseResult {
	return ParseResult{
		Expenses: []RawExpense{},
		Errors:   []RowError{},
		FileType: fileType,
	}
}

// FailedParse builds the single-error result used for file-level failures.
func FailedParse(fileType ImportFileType, message string) ParseResult {
	r := NewParseResult(fileType)
	r.Errors = append(r.Errors, RowError{Row: 0, Message: message})
	return r
}

// AddError records a row error.
func (r *ParseResult) AddError(row int, message string) {
	r.Errors = append(r.Errors, RowError{Row: row, Message: message})
}

// AddExpense records a parsed expense.
func (r *ParseResult) AddExpense(e RawExpense) {
	r.Expenses = append(r.Expenses, e)
}

// Expense is a persisted expense record.
type Expense struct {
	ID                string    `json:"id" firestore:"id"`
	UserID            string    `json:"userId,omitempty" firestore:"userId"`
	Description       string    `json:"description" firestore:"description"`
	Amount            float64   `json:"amount" firestore:"amount"`
	Date              string    `json:"date" firestore:"date"`
	Category          Category  `json:"category" firestore:"category"`
	Currency          string    `json:"currency" firestore:"currency"`
	IsAutoCategorized bool      `json:"isAutoCategorized" firestore:"isAutoCategorized"`
	Source            Source    `json:"source" firestore:"source"`
	Notes             string    `json:"notes,omitempty" firestore:"notes,omitempty"`
	CreatedAt         time.Time `json:"createdAt" firestore:"createdAt"`
}

// Validate checks the invariants every store enforces before writing.
func (e *Expense) Validate() error {
	if strings.TrimSpace(e.Description) == "" {
		return fmt.Errorf("description is required")
	}
	if e.Amount <= 0 {
		return fmt.Errorf("amount must be positive, got %v", e.Amount)
	}
	if _, err := time.Parse("2006-01-02", e.Date); err != nil {
		return fmt.Errorf("invalid date format (expected YYYY-MM-DD): %w", err)
	}
	if !ValidateCategory(e.Category) {
		return fmt.Errorf("invalid category: %s", e.Category)
	}
	return nil
}

// Preset is a quick-entry expense template.
type Preset struct {
	ID          string   `json:"id" firestore:"id"`
	Name        string   `json:"name" firestore:"name"`
	Description string   `json:"description" firestore:"description"`
	Amount      float64  `json:"amount" firestore:"amount"`
	Category    Category `json:"category" firestore:"category"`
	Currency    string   `json:"currency" firestore:"currency"`
}

// Today returns the current UTC date as YYYY-MM-DD.
func Today() string {
	return time.Now().UTC().Format("2006-01-02")
}

// SessionStatus tracks an import session through review and commit.
type SessionStatus string

const (
	SessionStatusParsed    SessionStatus = "parsed"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusError     SessionStatus = "error"
)

// ImportStats counts what happened to the records of one import.
type ImportStats struct {
	Parsed     int `json:"parsed" firestore:"parsed"`
	Imported   int `json:"imported" firestore:"imported"`
	Duplicates int `json:"duplicates" firestore:"duplicates"`
	Failed     int `json:"failed" firestore:"failed"`
}

// ImportSession is the audit record of one imported file.
type ImportSession struct {
	ID          string         `json:"id" firestore:"id"`
	UserID      string         `json:"userId" firestore:"userId"`
	FileName    string         `json:"fileName" firestore:"fileName"`
	FileType    ImportFileType `json:"fileType" firestore:"fileType"`
	Status      SessionStatus  `json:"status" firestore:"status"`
	Stats       ImportStats    `json:"stats" firestore:"stats"`
	Error       string         `json:"error,omitempty" firestore:"error,omitempty"`
	CreatedAt   time.Time      `json:"createdAt" firestore:"createdAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty" firestore:"completedAt,omitempty"`
}

// Validate checks if the ImportSession has valid data
func (s *ImportSession) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("session ID is required")
	}
	if s.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	switch s.Status {
	case SessionStatusParsed, SessionStatusCompleted, SessionStatusError:
	default:
		return fmt.Errorf("invalid status: %s", s.Status)
	}
	if s.Stats.Parsed < 0 || s.Stats.Imported < 0 || s.Stats.Duplicates < 0 || s.Stats.Failed < 0 {
		return fmt.Errorf("session stats cannot be negative")
	}
	return nil
}
