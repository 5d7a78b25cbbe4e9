package vectordb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/reqcheck/internal/domain/entities"
	"github.com/0xcro3dile/reqcheck/internal/domain/ports"
)

// storeFactories runs each contract test against every store.
var storeFactories = map[string]func(t *testing.T) ports.VectorStore{
	"memory": func(*testing.T) ports.VectorStore { return NewInMemoryStore() },
	"sqlite": func(t *testing.T) ports.VectorStore {
		store, err := NewSQLiteStore(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		return store
	},
}

func testChunks() []entities.Chunk {
	return []entities.Chunk{
		{ID: "c1", DocumentID: "doc1", Content: "hello", Section: "Intro", Index: 0, Embedding: []float32{1.0, 0.0, 0.0}},
		{ID: "c2", DocumentID: "doc1", Content: "world", Index: 1, Embedding: []float32{0.0, 1.0, 0.0}},
		{ID: "c3", DocumentID: "doc2", Content: "other", Index: 0, Embedding: []float32{1.0, 0.0, 0.0}},
	}
}

func TestStore_StoreAndSearch(t *testing.T) {
	for name, newStore := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()
			require.NoError(t, store.Store(ctx, testChunks()))

			results, err := store.Search(ctx, "doc1", []float32{1.0, 0.0, 0.0}, 2)
			require.NoError(t, err)
			require.Len(t, results, 2)
			assert.Equal(t, "c1", results[0].Chunk.ID)
			assert.Equal(t, "Intro", results[0].Chunk.Section)
			assert.InDelta(t, 1.0, results[0].Score, 1e-9)
			for _, r := range results {
				assert.Equal(t, "doc1", r.Chunk.DocumentID, "search must stay within the document")
			}
		})
	}
}

func TestStore_TopK(t *testing.T) {
	for name, newStore := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()
			require.NoError(t, store.Store(ctx, testChunks()))

			results, err := store.Search(ctx, "doc1", []float32{0, 1, 0}, 1)
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "c2", results[0].Chunk.ID)
		})
	}
}

func TestStore_SearchRejectsDimensionMismatch(t *testing.T) {
	for name, newStore := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()
			require.NoError(t, store.Store(ctx, testChunks()))

			_, err := store.Search(ctx, "doc1", []float32{1, 0, 0, 0, 0}, 2)
			require.ErrorIs(t, err, ports.ErrDimensionMismatch)
			assert.Contains(t, err.Error(), "query has 5 dimensions")

			results, err := store.Search(ctx, "missing", []float32{1, 0, 0, 0, 0}, 2)
			require.NoError(t, err)
			assert.Empty(t, results)
		})
	}
}

func TestStore_Info(t *testing.T) {
	for name, newStore := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()
			chunks := testChunks()
			for i := range chunks {
				chunks[i].Model = "openai/text-embedding-3-small"
			}
			chunks = append(chunks, entities.Chunk{
				ID: "c4", DocumentID: "doc1", Content: "legacy", Index: 2,
				Embedding: []float32{1, 0}, Model: "ollama/nomic-embed-text",
			})
			require.NoError(t, store.Store(ctx, chunks))

			info, err := store.Info(ctx, "doc1")
			require.NoError(t, err)
			assert.Equal(t, 3, info.Chunks)
			assert.Equal(t, []string{"ollama/nomic-embed-text", "openai/text-embedding-3-small"}, info.Models)
			assert.Equal(t, []int{2, 3}, info.Dimensions)

			info, err = store.Info(ctx, "missing")
			require.NoError(t, err)
			assert.Zero(t, info.Chunks)
			assert.Empty(t, info.Models)
		})
	}
}

func TestStore_Count(t *testing.T) {
	for name, newStore := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()
			require.NoError(t, store.Store(ctx, testChunks()))
			// storing the same chunk again must not double count
			require.NoError(t, store.Store(ctx, testChunks()[:1]))

			n, err := store.Count(ctx, "doc1")
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			n, err = store.Count(ctx, "missing")
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	for name, newStore := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()
			require.NoError(t, store.Store(ctx, testChunks()))

			require.NoError(t, store.Delete(ctx, "doc1"))

			results, err := store.Search(ctx, "doc1", []float32{1, 0, 0}, 10)
			require.NoError(t, err)
			assert.Empty(t, results)

			n, _ := store.Count(ctx, "doc2")
			assert.Equal(t, 1, n, "other documents are kept")
		})
	}
}

func TestStore_Clear(t *testing.T) {
	for name, newStore := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()
			require.NoError(t, store.Store(ctx, testChunks()))

			require.NoError(t, store.Clear(ctx))

			for _, doc := range []string{"doc1", "doc2"} {
				n, err := store.Count(ctx, doc)
				require.NoError(t, err)
				assert.Zero(t, n)
			}
		})
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Store(ctx, testChunks()))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	total, err := reopened.ChunkCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestSQLiteStore_UpgradesDatabaseWithoutModelColumn(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := sql.Open("sqlite3", filepath.Join(dir, "vectors.db"))
	require.NoError(t, err)
	_, err = db.Exec(`
	CREATE TABLE chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		content TEXT NOT NULL,
		section TEXT NOT NULL DEFAULT '',
		chunk_index INTEGER NOT NULL,
		embedding BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	INSERT INTO chunks (id, document_id, content, chunk_index, embedding) VALUES ('old', 'doc1', 'text', 0, '[1,0,0]');
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	store, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	defer store.Close()

	info, err := store.Info(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, 1, info.Chunks)
	assert.Equal(t, []string{""}, info.Models)
	assert.Equal(t, []int{3}, info.Dimensions)

	require.NoError(t, store.Store(ctx, []entities.Chunk{{ID: "new", DocumentID: "doc2", Content: "x", Embedding: []float32{1}, Model: "m"}}))
	info, err = store.Info(ctx, "doc2")
	require.NoError(t, err)
	assert.Equal(t, []string{"m"}, info.Models)
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	c := []float32{0, 1, 0}

	assert.Equal(t, 1.0, cosineSimilarity(a, b))
	assert.Equal(t, 0.0, cosineSimilarity(a, c))
	assert.Equal(t, 0.0, cosineSimilarity(a, []float32{1, 0}), "length mismatch")
	assert.Equal(t, 0.0, cosineSimilarity(a, []float32{0, 0, 0}), "zero vector")
}

func TestRank_TiesKeepChunkOrder(t *testing.T) {
	chunks := []entities.Chunk{
		{ID: "b", Index: 1, Embedding: []float32{1, 0}},
		{ID: "a", Index: 0, Embedding: []float32{1, 0}},
	}
	results, err := rank([]float32{1, 0}, chunks, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Chunk.ID)
}
