package presets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/rumor-ml/commons.systems/expenseimport/internal/domain"
)

// FileStore keeps all users' custom presets in one JSON file. Writes go to a
// temp file that is renamed over the original.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file is created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Get returns the user's presets. A missing or unreadable file yields none.
func (s *FileStore) Get(ctx context.Context, userID string) ([]domain.Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()[userID], nil
}

// Save replaces the user's presets.
func (s *FileStore) Save(ctx context.Context, userID string, presets []domain.Preset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.load()
	all[userID] = presets

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal presets: %w", err)
	}

	tempFile := s.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, s.path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func (s *FileStore) load() map[string][]domain.Preset {
	all := make(map[string][]domain.Preset)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("failed to read presets file", "path", s.path, "err", err)
		}
		return all
	}
	if err := json.Unmarshal(data, &all); err != nil {
		log.Warn("ignoring corrupt presets file", "path", s.path, "err", err)
		return make(map[string][]domain.Preset)
	}
	return all
}

// MemoryStore keeps presets in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	presets map[string][]domain.Preset
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{presets: make(map[string][]domain.Preset)}
}

// Get returns a copy of the user's presets.
func (s *MemoryStore) Get(ctx context.Context, userID string) ([]domain.Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Preset(nil), s.presets[userID]...), nil
}

// Save replaces the user's presets.
func (s *MemoryStore) Save(ctx context.Context, userID string, presets []domain.Preset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presets[userID] = append([]domain.Preset(nil), presets...)
	return nil
}
