package dedup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFingerprint(t *testing.T) {
	base := GenerateFingerprint("2024-01-15", 12.5, "Coffee Shop")

	assert.Len(t, base, 64)
	assert.Equal(t, base, GenerateFingerprint("2024-01-15T08:00:00Z", 12.500, "  coffee   SHOP "))
	assert.NotEqual(t, base, GenerateFingerprint("2024-01-16", 12.5, "Coffee Shop"))
	assert.NotEqual(t, base, GenerateFingerprint("2024-01-15", 12.51, "Coffee Shop"))
	assert.NotEqual(t, base, GenerateFingerprint("2024-01-15", 12.5, "Coffee Shops"))
}

func TestRecordExpense(t *testing.T) {
	s := NewState()
	fp := GenerateFingerprint("2024-01-15", 12.5, "Coffee")
	first := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	later := first.Add(24 * time.Hour)

	assert.False(t, s.Seen(fp))
	require.NoError(t, s.RecordExpense(fp, "exp-1", first))
	require.NoError(t, s.RecordExpense(fp, "exp-2", later))

	assert.True(t, s.Seen(fp))
	rec := s.Fingerprints[fp]
	assert.Equal(t, 2, rec.Count)
	assert.Equal(t, first, rec.FirstSeen)
	assert.Equal(t, later, rec.LastSeen)
	assert.Equal(t, "exp-1", rec.ExpenseID)

	assert.Error(t, s.RecordExpense("", "exp", first))
	assert.Error(t, s.RecordExpense(fp, "", first))
}

func TestSaveAndLoadState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	s := NewState()
	require.NoError(t, s.RecordExpense("abc", "exp-1", time.Now()))

	require.NoError(t, SaveState(s, path))
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	loaded, err := LoadState(path)
	require.NoError(t, err)
	assert.True(t, loaded.Seen("abc"))
	assert.Equal(t, 1, loaded.Metadata.TotalFingerprints)
}

func TestLoadState_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadState(filepath.Join(dir, "missing.json"))
	assert.True(t, os.IsNotExist(err))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0644))
	_, err = LoadState(bad)
	assert.ErrorContains(t, err, "failed to parse state file")

	future := filepath.Join(dir, "future.json")
	require.NoError(t, os.WriteFile(future, []byte(`{"version": 2, "fingerprints": {}}`), 0644))
	_, err = LoadState(future)
	assert.ErrorContains(t, err, "unsupported state file version 2")

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"version": 1}`), 0644))
	s, err := LoadState(empty)
	require.NoError(t, err)
	assert.NotNil(t, s.Fingerprints)
}

func TestLoadOrNewState(t *testing.T) {
	s, err := LoadOrNewState(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)
	assert.Empty(t, s.Fingerprints)
	assert.Equal(t, CurrentVersion, s.Version)
}
