package persistence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQTableStore_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewQTableStore(filepath.Join(dir, "qtable.cbor"))

	snapshot := QTableSnapshot{
		Entries: []QEntry{
			{Kind: "rust", Bucket: "far", AgentID: "R1", Value: -0.5},
			{Kind: "rust", Bucket: "medium", AgentID: "R2", Value: 0},
		},
	}

	require.NoError(t, store.Save(snapshot))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, SnapshotVersion, loaded.Version)
	require.Equal(t, snapshot.Entries, loaded.Entries)
}

func TestQTableStore_LoadMissingFileReturnsZeroValue(t *testing.T) {
	dir := t.TempDir()
	store := NewQTableStore(filepath.Join(dir, "absent.cbor"))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Empty(t, loaded.Entries)
}

func TestQTableStore_LoadCorruptFileReturnsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qtable.cbor")
	require.NoError(t, os.WriteFile(path, []byte("not cbor"), 0644))

	store := NewQTableStore(path)
	_, err := store.Load()
	require.Error(t, err)
}

func TestQTableStore_SaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qtable.cbor")
	store := NewQTableStore(path)

	require.NoError(t, store.Save(QTableSnapshot{Entries: []QEntry{{Kind: "rust", Bucket: "near", AgentID: "R1", Value: -1.2}}}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp file should survive a successful Save")
}

func TestQTableStore_ClearRemovesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qtable.cbor")
	store := NewQTableStore(path)

	require.NoError(t, store.Save(QTableSnapshot{}))
	require.NoError(t, store.Clear())

	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))

	require.NoError(t, store.Clear())
}
