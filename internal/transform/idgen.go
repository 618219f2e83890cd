// Package transform turns reviewed import records into stored expenses and
// generates the identifiers an import carries.
package transform

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts a name to a URL-safe slug.
// Examples: "Chase Checking.csv" → "chase-checking-csv", "Café Crédit" → "cafe-credit"
func Slugify(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("name cannot be empty")
	}

	// Strip accents.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	normalized, _, err := transform.String(t, name)
	if err != nil {
		return "", fmt.Errorf("failed to normalize name %q: %w", name, err)
	}

	slug := nonAlnum.ReplaceAllString(strings.ToLower(normalized), "-")
	slug = strings.Trim(slug, "-")

	if slug == "" {
		return "", fmt.Errorf("name %q contains no alphanumeric characters", name)
	}

	return slug, nil
}

// maxSlugLength bounds the file-name part of a session ID.
const maxSlugLength = 40

// GenerateSessionID creates a readable, unique import session ID.
// Format: "imp-YYYYMMDD-{fileSlug}-{8 hex}"
// Example: GenerateSessionID("Chase Export.csv", t) → "imp-20240115-chase-export-csv-1f3a9c2e"
func GenerateSessionID(fileName string, at time.Time) string {
	slug, err := Slugify(fileName)
	if err != nil {
		slug = "file"
	}
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("imp-%s-%s-%s", at.UTC().Format("20060102"), slug, suffix)
}
