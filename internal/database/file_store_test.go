package database

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStoreAt(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, err)
	return store
}

func TestFileStoreGetUnsetKey(t *testing.T) {
	store := newTestStore(t)

	value, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, "", value)
}

func TestFileStoreSetAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, KeyHomeAddress, "1 Home Ave, Toronto, ON"))

	value, err := store.Get(ctx, KeyHomeAddress)
	require.NoError(t, err)
	assert.Equal(t, "1 Home Ave, Toronto, ON", value)
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	ctx := context.Background()

	store, err := NewFileStoreAt(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, KeyPricePerKm, "0.68"))
	require.NoError(t, store.Close())

	reopened, err := NewFileStoreAt(path)
	require.NoError(t, err)

	value, err := reopened.Get(ctx, KeyPricePerKm)
	require.NoError(t, err)
	assert.Equal(t, "0.68", value)
}

func TestFileStoreWritesValidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	ctx := context.Background()

	store, err := NewFileStoreAt(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "a", "1"))
	require.NoError(t, store.Set(ctx, "b", "2"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, decoded)
}

func TestFileStoreLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")

	store, err := NewFileStoreAt(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), "a", "1"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "session.json", entries[0].Name())
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0600))

	_, err := NewFileStoreAt(path)
	assert.Error(t, err)
}
