package transform

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    string
		expectError bool
	}{
		{"file name with extension", "Chase Checking.csv", "chase-checking-csv", false},
		{"already lowercase", "export.ofx", "export-ofx", false},
		{"underscores and dates", "amex_2024-01_statement.PDF", "amex-2024-01-statement-pdf", false},
		{"repeated separators", "My   Budget -- Final.xlsx", "my-budget-final-xlsx", false},
		{"accents", "Café Crédit.json", "cafe-credit-json", false},
		{"leading punctuation", "!!report.csv", "report-csv", false},
		{"empty", "", "", true},
		{"only punctuation", "!@#$%^&*()", "", true},
		{"only hyphens", "---", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Slugify(tt.input)
			if tt.expectError {
				if err == nil {
					t.Errorf("Slugify(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Errorf("Slugify(%q) returned unexpected error: %v", tt.input, err)
			}
			if result != tt.expected {
				t.Errorf("Slugify(%q) = %q, expected %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestGenerateSessionID(t *testing.T) {
	at := time.Date(2024, 1, 15, 23, 30, 0, 0, time.UTC)
	pattern := regexp.MustCompile(`^imp-20240115-chase-export-csv-[0-9a-f]{8}$`)

	id := GenerateSessionID("Chase Export.csv", at)
	if !pattern.MatchString(id) {
		t.Errorf("GenerateSessionID() = %q, want match for %s", id, pattern)
	}

	if other := GenerateSessionID("Chase Export.csv", at); other == id {
		t.Errorf("GenerateSessionID() returned the same ID twice: %q", id)
	}

	t.Run("unsluggable name", func(t *testing.T) {
		id := GenerateSessionID("???", at)
		if !strings.HasPrefix(id, "imp-20240115-file-") {
			t.Errorf("GenerateSessionID(???) = %q, want file placeholder", id)
		}
	})

	t.Run("long name is truncated", func(t *testing.T) {
		id := GenerateSessionID(strings.Repeat("statement ", 20)+".csv", at)
		slug := strings.TrimPrefix(id, "imp-20240115-")
		slug = slug[:len(slug)-9]
		if len(slug) > maxSlugLength || strings.HasSuffix(slug, "-") {
			t.Errorf("slug part %q not truncated cleanly", slug)
		}
	})
}
