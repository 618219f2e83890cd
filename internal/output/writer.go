// Package output renders import results and expense exports.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// WriteResult serializes v to JSON with 2-space indentation
func WriteResult(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode result as JSON: %w", err)
	}
	return nil
}

// WriteResultToFile writes v to path, or to stdout when path is empty
func WriteResultToFile(v any, path string) (err error) {
	if path == "" {
		return WriteResult(os.Stdout, v)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close output file %s: %w", path, closeErr)
		}
	}()

	if err = WriteResult(f, v); err != nil {
		return fmt.Errorf("failed to write result to %s: %w", path, err)
	}
	return nil
}
