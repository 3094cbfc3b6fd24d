package collection

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourcelens/sourcelens/internal/chunker"
	"github.com/sourcelens/sourcelens/internal/embedding"
	"github.com/sourcelens/sourcelens/internal/vectorstore"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func newTestManager() (*Manager, vectorstore.Store) {
	store := vectorstore.NewMemoryStore()
	embedder := embedding.NewNullProvider(8)
	chunks := chunker.New(chunker.DefaultConfig(), nil)
	return New(store, embedder, chunks, DefaultConfig(), nil), store
}

func TestIndex_InitialRunAddsAllFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n\nfunc Hello() {\n\tprintln(\"hi\")\n}\n")
	writeFile(t, root, "b.go", "package a\n\nfunc World() {\n\tprintln(\"world\")\n}\n")

	m, store := newTestManager()
	report, err := m.Index(context.Background(), root, "proj")
	require.NoError(t, err)
	assert.Equal(t, 2, report.FilesChanged)
	assert.Greater(t, report.ChunksAdded, 0)
	assert.Equal(t, StatePopulated, m.State("proj"))

	stats, err := store.GetStats(context.Background(), "proj")
	require.NoError(t, err)
	assert.Equal(t, report.ChunksAdded, stats["vector_count"])
}

func TestIndex_SecondRunIsNoOpWhenUnchanged(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n\nfunc Hello() {\n\tprintln(\"hi\")\n}\n")

	m, _ := newTestManager()
	ctx := context.Background()
	_, err := m.Index(ctx, root, "proj")
	require.NoError(t, err)

	report, err := m.Index(ctx, root, "proj")
	require.NoError(t, err)
	assert.Equal(t, 0, report.FilesChanged)
	assert.Equal(t, 0, report.ChunksAdded)
	assert.Equal(t, 0, report.ChunksRemoved)
}

func TestIndex_ModifiedFileReembedsAndRemovesOldChunks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n\nfunc Hello() {\n\tprintln(\"hi\")\n}\n")

	m, store := newTestManager()
	ctx := context.Background()
	first, err := m.Index(ctx, root, "proj")
	require.NoError(t, err)

	writeFile(t, root, "a.go", "package a\n\nfunc HelloChanged() {\n\tprintln(\"hi again\")\n}\n")
	second, err := m.Index(ctx, root, "proj")
	require.NoError(t, err)
	assert.Equal(t, 1, second.FilesChanged)
	assert.Equal(t, first.ChunksAdded, second.ChunksRemoved)

	chunks, err := store.GetChunksByFile(ctx, "proj", "a.go")
	require.NoError(t, err)
	assert.Len(t, chunks, second.ChunksAdded)
}

func TestIndex_RemovedFileDeletesItsChunks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n\nfunc Hello() {\n\tprintln(\"hi\")\n}\n")

	m, store := newTestManager()
	ctx := context.Background()
	_, err := m.Index(ctx, root, "proj")
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "a.go")))
	report, err := m.Index(ctx, root, "proj")
	require.NoError(t, err)
	assert.Equal(t, 1, report.FilesChanged)
	assert.Greater(t, report.ChunksRemoved, 0)

	chunks, err := store.GetChunksByFile(ctx, "proj", "a.go")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestClear_ResetsToEmptyWithoutDeletingCollection(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n\nfunc Hello() {}\n")

	m, store := newTestManager()
	ctx := context.Background()
	_, err := m.Index(ctx, root, "proj")
	require.NoError(t, err)

	require.NoError(t, m.Clear(ctx, "proj"))
	assert.Equal(t, StateEmpty, m.State("proj"))

	exists, err := store.CollectionExists(ctx, "proj")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDelete_RemovesCollectionAndResetsState(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n\nfunc Hello() {}\n")

	m, store := newTestManager()
	ctx := context.Background()
	_, err := m.Index(ctx, root, "proj")
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, "proj"))
	exists, err := store.CollectionExists(ctx, "proj")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, StateUninitialized, m.State("proj"))
}
