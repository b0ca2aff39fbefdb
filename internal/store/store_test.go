package store_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/srg/picoflash/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadClear(t *testing.T) {
	// GOAL: Verify the device id survives a save/load roundtrip and is gone after clear
	//
	// TEST SCENARIO: empty → save → load → clear → empty; clear twice is fine

	path := filepath.Join(t.TempDir(), "nested", "state.yaml")
	s := store.New(path)

	id, err := s.DeviceID()
	require.NoError(t, err)
	assert.Empty(t, id, "no file MUST mean no stored device")

	require.NoError(t, s.Save(" AA:BB:CC:DD:EE:01 "))

	st, err := store.New(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "AA:BB:CC:DD:EE:01", st.DeviceID)
	assert.WithinDuration(t, time.Now(), st.SavedAt, time.Minute)

	require.NoError(t, s.Clear())
	id, err = s.DeviceID()
	require.NoError(t, err)
	assert.Empty(t, id)

	assert.NoError(t, s.Clear())
}

func TestSaveOverwrites(t *testing.T) {
	s := store.New(filepath.Join(t.TempDir(), "state.yaml"))
	require.NoError(t, s.Save("first"))
	require.NoError(t, s.Save("second"))

	id, err := s.DeviceID()
	require.NoError(t, err)
	assert.Equal(t, "second", id)

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files MUST NOT be left behind")
}

func TestSaveRejectsEmpty(t *testing.T) {
	s := store.New(filepath.Join(t.TempDir(), "state.yaml"))
	assert.Error(t, s.Save("  "))
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device_id: [oops"), 0o600))

	_, err := store.New(path).Load()
	assert.Error(t, err)
}
