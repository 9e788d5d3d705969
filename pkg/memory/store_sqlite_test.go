package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "memory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveAndRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Save(ctx, "user prefers metric units", "chat", []string{"pref"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	_, err = store.Save(ctx, "user lives in Oslo", "chat", nil)
	require.NoError(t, err)

	items, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	// most recent first
	assert.Equal(t, "user lives in Oslo", items[0].Content)
	assert.Equal(t, []string{"pref"}, items[1].Tags)
}

func TestSaveRejectsEmpty(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save(context.Background(), "   ", "chat", nil)
	assert.Error(t, err)
}

func TestSearchAllTermsMatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, "Birthday reminder for Alice on June 3", "scheduler", nil)
	require.NoError(t, err)
	_, err = store.Save(ctx, "Alice likes green tea", "chat", nil)
	require.NoError(t, err)

	items, err := store.Search(ctx, "alice birthday", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Contains(t, items[0].Content, "Birthday")

	items, err = store.Search(ctx, "alice", 10)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestSearchEmptyQueryFallsBackToRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, "something", "chat", nil)
	require.NoError(t, err)

	items, err := store.Search(ctx, "  ", 5)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item, err := store.Save(ctx, "temporary note", "chat", nil)
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, item.ID))

	items, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}
