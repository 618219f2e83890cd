package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// State is the persisted history of expenses committed by earlier imports.
type State struct {
	Version      int                           `json:"version"`
	Fingerprints map[string]*FingerprintRecord `json:"fingerprints"`
	Metadata     StateMetadata                 `json:"metadata"`
}

// FingerprintRecord tracks an expense fingerprint across imports.
type FingerprintRecord struct {
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
	Count     int       `json:"count"`
	ExpenseID string    `json:"expenseId"`
}

// StateMetadata contains aggregate statistics about the state.
type StateMetadata struct {
	LastUpdated       time.Time `json:"lastUpdated"`
	TotalFingerprints int       `json:"totalFingerprints"`
}

const (
	// CurrentVersion is the current state file format version
	CurrentVersion = 1
)

// NewState creates an empty state.
func NewState() *State {
	return &State{
		Version:      CurrentVersion,
		Fingerprints: make(map[string]*FingerprintRecord),
		Metadata: StateMetadata{
			LastUpdated: time.Now(),
		},
	}
}

// GenerateFingerprint hashes "{date}|{amount}|{description}" with SHA256.
// The date is cut to its calendar day, the amount rounded to cents and the
// description normalized the same way the similarity check does it.
func GenerateFingerprint(date string, amount float64, description string) string {
	input := fmt.Sprintf("%s|%.2f|%s", day(date), roundCents(amount), Normalize(description))
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}

// LoadState loads a state file from disk.
// Returns os.IsNotExist error if file doesn't exist (caller should handle).
func LoadState(filePath string) (*State, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}

	if state.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported state file version %d (current version: %d)", state.Version, CurrentVersion)
	}

	if state.Fingerprints == nil {
		state.Fingerprints = make(map[string]*FingerprintRecord)
	}

	return &state, nil
}

// LoadOrNewState loads filePath, or returns an empty state when it does not exist.
func LoadOrNewState(filePath string) (*State, error) {
	state, err := LoadState(filePath)
	if os.IsNotExist(err) {
		return NewState(), nil
	}
	return state, err
}

// SaveState atomically writes the state to disk, creating the parent
// directory if needed.
func SaveState(state *State, filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	state.Metadata.LastUpdated = time.Now()
	state.Metadata.TotalFingerprints = len(state.Fingerprints)

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tempFile := filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempFile, filePath); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Seen reports whether a fingerprint was already recorded.
func (s *State) Seen(fingerprint string) bool {
	_, exists := s.Fingerprints[fingerprint]
	return exists
}

// RecordExpense records an expense fingerprint. A new fingerprint starts at
// count 1; a known one has its last-seen time and count bumped.
func (s *State) RecordExpense(fingerprint, expenseID string, timestamp time.Time) error {
	if fingerprint == "" {
		return fmt.Errorf("fingerprint cannot be empty")
	}
	if expenseID == "" {
		return fmt.Errorf("expense ID cannot be empty")
	}

	if record, exists := s.Fingerprints[fingerprint]; exists {
		record.LastSeen = timestamp
		record.Count++
		return nil
	}

	s.Fingerprints[fingerprint] = &FingerprintRecord{
		FirstSeen: timestamp,
		LastSeen:  timestamp,
		Count:     1,
		ExpenseID: expenseID,
	}
	return nil
}
