package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
)

// Parser is the strategy interface implemented by every format parser.
// Parse never returns an error: expected failures are reported in ParseResult.Errors.
type Parser interface {
	// Type returns the import file type this parser handles
	Type() domain.ImportFileType

	// Parse converts the file into candidate expenses and row diagnostics
	Parse(ctx context.Context, f *File) domain.ParseResult
}

// File is an uploaded or on-disk file. Content is read lazily for files opened
// from disk so size limits can be enforced before anything is loaded.
type File struct {
	name    string
	path    string
	size    int64
	content []byte
	loaded  bool
}

// NewFile creates an in-memory file. The name is required because the
// dispatcher detects the format from its extension.
func NewFile(name string, content []byte) (*File, error) {
	if name == "" {
		return nil, fmt.Errorf("file name cannot be empty")
	}
	return &File{
		name:    name,
		size:    int64(len(content)),
		content: content,
		loaded:  true,
	}, nil
}

// OpenFile creates a file backed by path. Only the size is read up front.
func OpenFile(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &File{
		name: filepath.Base(path),
		path: path,
		size: info.Size(),
	}, nil
}

// Name returns the base file name
func (f *File) Name() string { return f.name }

// Path returns the on-disk path, empty for in-memory files
func (f *File) Path() string { return f.path }

// Size returns the byte length
func (f *File) Size() int64 { return f.size }

// Ext returns the lower-cased extension without the leading dot
func (f *File) Ext() string {
	return Extension(f.name)
}

// Extension returns the lower-cased extension of name without the leading dot.
func Extension(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

// Bytes returns the raw content, reading it from disk on first use.
func (f *File) Bytes() ([]byte, error) {
	if f.loaded {
		return f.content, nil
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	f.content = data
	f.size = int64(len(data))
	f.loaded = true
	return data, nil
}

// Text returns the content decoded to UTF-8 (see DecodeText).
func (f *File) Text() (string, error) {
	data, err := f.Bytes()
	if err != nil {
		return "", err
	}
	return DecodeText(data), nil
}
