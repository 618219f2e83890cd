// Package scanner finds importable expense files under a directory.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/registry"
)

// Scanner walks a directory tree, or checks a single file, for import files
type Scanner struct {
	root string
}

// New creates a new scanner for the given file or root directory
func New(root string) *Scanner {
	return &Scanner{root: root}
}

// ScanResult represents a found file with what its location tells about it
type ScanResult struct {
	Path string
	Type domain.ImportFileType
	// Institution is the first directory under the root, e.g.
	// "capital_one" becomes "Capital One". Empty for files at the root.
	Institution string
	// Period is a YYYY-MM directory directly above the file, if any.
	Period string
}

// Scan returns every supported file in lexical path order. Hidden files and
// directories are skipped. A root that is a file is returned alone, and must
// have a supported extension.
func (s *Scanner) Scan() ([]ScanResult, error) {
	root, err := expandHome(s.root)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	if !info.IsDir() {
		ft, ok := registry.DetectFileType(root)
		if !ok {
			return nil, fmt.Errorf("unsupported file %s (supported extensions: %s)",
				root, strings.Join(registry.SupportedExtensions(), ", "))
		}
		return []ScanResult{{Path: root, Type: ft}}, nil
	}

	var results []ScanResult
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		ft, ok := registry.DetectFileType(path)
		if !ok {
			return nil
		}

		result := ScanResult{Path: path, Type: ft}
		s.annotate(&result, root)
		results = append(results, result)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	return results, nil
}

// annotate reads the layout {root}/{institution}/.../{period?}/file.ext
func (s *Scanner) annotate(r *ScanResult, root string) {
	rel, err := filepath.Rel(root, r.Path)
	if err != nil {
		return
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) >= 2 {
		r.Institution = normalizeInstitutionName(parts[0])
	}
	if len(parts) >= 3 && looksLikePeriod(parts[len(parts)-2]) {
		r.Period = parts[len(parts)-2]
	}
}

// normalizeInstitutionName converts directory name to readable name
// "american_express" -> "American Express"
func normalizeInstitutionName(dirName string) string {
	words := strings.Fields(strings.NewReplacer("_", " ", "-", " ").Replace(dirName))
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

// looksLikePeriod checks if string looks like a YYYY-MM period
func looksLikePeriod(str string) bool {
	if len(str) != 7 || str[4] != '-' {
		return false
	}
	for i, c := range str {
		if i != 4 && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// expandHome expands a leading ~ to the home directory
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to expand home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/")), nil
}
