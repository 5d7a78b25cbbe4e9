package usecases

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/reqcheck/internal/domain/entities"
	"github.com/0xcro3dile/reqcheck/internal/domain/ports"
)

func TestIndexer_BuildIndex(t *testing.T) {
	embedder := &mockEmbedder{}
	store := &mockVectorStore{}
	ix := NewIndexer(embedder, store, 1000, 200, nil)

	doc := &entities.Document{ID: "doc1", Name: "rfp.md", Content: "# Scope\n\nBuild a portal.\n\n# Security\n\nAll data is encrypted with AES-256."}
	index, err := ix.BuildIndex(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, "doc1", index.DocumentID)
	assert.Equal(t, "rfp.md", index.DocumentName)
	assert.Equal(t, 2, index.Chunks)
	assert.False(t, index.Reused)
	assert.Equal(t, 1, embedder.batches)
	require.Len(t, store.chunks, 2)
	for _, c := range store.chunks {
		assert.NotEmpty(t, c.Embedding)
		assert.Equal(t, "doc1", c.DocumentID)
	}
}

func TestIndexer_ReusesExistingIndex(t *testing.T) {
	embedder := &mockEmbedder{}
	store := &mockVectorStore{chunks: []entities.Chunk{
		{ID: "a", DocumentID: "doc1", Content: "x", Embedding: []float32{1, 0, 0}, Model: "openai/small"},
		{ID: "b", DocumentID: "doc1", Content: "y", Embedding: []float32{0, 1, 0}, Model: "openai/small"},
	}}
	ix := NewIndexer(embedder, store, 0, 0, nil, WithEmbeddingModel("openai/small"))

	index, err := ix.BuildIndex(context.Background(), &entities.Document{ID: "doc1", Content: "# New\n\ntext"})
	require.NoError(t, err)
	assert.True(t, index.Reused)
	assert.Equal(t, 2, index.Chunks)
	assert.Equal(t, 0, embedder.batches)
}

func TestIndexer_ReindexesWhenStoredIndexIsIncompatible(t *testing.T) {
	tests := []struct {
		name   string
		stored []entities.Chunk
	}{
		{"different model", []entities.Chunk{
			{ID: "a", DocumentID: "doc1", Content: "x", Embedding: []float32{1, 0, 0, 0, 0}, Model: "ollama/nomic"},
		}},
		{"unrecorded model", []entities.Chunk{
			{ID: "a", DocumentID: "doc1", Content: "x", Embedding: []float32{1, 0, 0}},
		}},
		{"mixed dimensions", []entities.Chunk{
			{ID: "a", DocumentID: "doc1", Content: "x", Embedding: []float32{1, 0, 0}, Model: "openai/small"},
			{ID: "b", DocumentID: "doc1", Content: "y", Embedding: []float32{1, 0}, Model: "openai/small"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embedder := &mockEmbedder{}
			store := &mockVectorStore{chunks: append([]entities.Chunk{
				{ID: "keep", DocumentID: "doc2", Content: "z", Embedding: []float32{1}, Model: "ollama/nomic"},
			}, tt.stored...)}
			ix := NewIndexer(embedder, store, 1000, 200, nil, WithEmbeddingModel("openai/small"))

			index, err := ix.BuildIndex(context.Background(), &entities.Document{ID: "doc1", Name: "rfp.md", Content: "# Security\n\nAES-256."})
			require.NoError(t, err)
			assert.False(t, index.Reused)
			assert.Equal(t, 1, index.Chunks)
			assert.Equal(t, 1, embedder.batches)

			info, err := store.Info(context.Background(), "doc1")
			require.NoError(t, err)
			assert.Equal(t, 1, info.Chunks)
			assert.Equal(t, []string{"openai/small"}, info.Models)
			assert.Equal(t, []int{3}, info.Dimensions)

			n, _ := store.Count(context.Background(), "doc2")
			assert.Equal(t, 1, n, "other documents are untouched")
		})
	}
}

func TestIndexer_RejectsInconsistentEmbeddings(t *testing.T) {
	store := &mockVectorStore{}
	ix := NewIndexer(&raggedEmbedder{}, store, 1000, 200, nil)

	_, err := ix.BuildIndex(context.Background(), &entities.Document{ID: "doc1", Content: "# A\n\none\n\n# B\n\ntwo"})
	assert.ErrorIs(t, err, ports.ErrDimensionMismatch)
	assert.Empty(t, store.chunks)
}

func TestIndexer_HeadingsOnlyDocumentUsesWindows(t *testing.T) {
	store := &mockVectorStore{}
	ix := NewIndexer(&mockEmbedder{}, store, 1000, 200, nil)

	doc := &entities.Document{ID: "doc1", Name: "outline.md", Content: "# Scope\n## Security\n### Encryption\n"}
	chunks := ix.Chunk(doc)
	require.Len(t, chunks, 1)
	assert.Empty(t, chunks[0].Section)
	assert.Equal(t, "# Scope\n## Security\n### Encryption", chunks[0].Content)

	index, err := ix.BuildIndex(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 1, index.Chunks)
}

func TestIndexer_EmptyDocument(t *testing.T) {
	ix := NewIndexer(&mockEmbedder{}, &mockVectorStore{}, 0, 0, nil)

	_, err := ix.BuildIndex(context.Background(), &entities.Document{ID: "doc1", Name: "blank.txt", Content: " \n\n\t"})
	assert.ErrorIs(t, err, ErrNoChunks)
	assert.Contains(t, err.Error(), "blank.txt")
}

func TestIndexer_EmbeddingFailure(t *testing.T) {
	store := &mockVectorStore{}
	ix := NewIndexer(&mockEmbedder{failWith: errBackend}, store, 0, 0, nil)

	_, err := ix.BuildIndex(context.Background(), &entities.Document{ID: "doc1", Content: "some text"})
	assert.ErrorIs(t, err, errBackend)
	assert.Empty(t, store.chunks)
}

func TestIndexer_Delete(t *testing.T) {
	store := &mockVectorStore{chunks: []entities.Chunk{{DocumentID: "doc1"}, {DocumentID: "doc2"}}}
	ix := NewIndexer(&mockEmbedder{}, store, 0, 0, nil)

	require.NoError(t, ix.Delete(context.Background(), "doc1"))
	n, _ := store.Count(context.Background(), "doc1")
	assert.Zero(t, n)
	n, _ = store.Count(context.Background(), "doc2")
	assert.Equal(t, 1, n)
}

func TestIndexer_ChunkByHeadings(t *testing.T) {
	ix := NewIndexer(nil, nil, 1000, 200, nil)
	content := strings.Join([]string{
		"Preamble text.",
		"# Requirements",
		"General intro.",
		"## Security",
		"Data is encrypted.",
		"### Keys",
		"Keys rotate yearly.",
		"## Usability",
		"Supports Russian and English.",
	}, "\n")

	chunks := ix.Chunk(&entities.Document{ID: "doc1", Content: content})
	require.Len(t, chunks, 5)

	assert.Equal(t, "", chunks[0].Section)
	assert.Equal(t, "Preamble text.", chunks[0].Content)

	assert.Equal(t, "Requirements > Security > Keys", chunks[3].Section)
	assert.Equal(t, "Requirements > Security > Keys\n\nKeys rotate yearly.", chunks[3].Content)

	assert.Equal(t, "Requirements > Usability", chunks[4].Section)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, generateChunkID("doc1", i), c.ID)
	}
}

func TestIndexer_HeadingsInsideCodeFenceIgnored(t *testing.T) {
	ix := NewIndexer(nil, nil, 1000, 200, nil)
	content := "# Setup\n\n```bash\n# install deps\nmake\n```\n\nDone."

	chunks := ix.Chunk(&entities.Document{ID: "doc1", Content: content})
	require.Len(t, chunks, 1)
	assert.Equal(t, "Setup", chunks[0].Section)
	assert.Contains(t, chunks[0].Content, "# install deps")
	assert.Contains(t, chunks[0].Content, "Done.")
}

func TestIndexer_LongSectionIsWindowed(t *testing.T) {
	ix := NewIndexer(nil, nil, 100, 20, nil)
	var paras []string
	for i := 0; i < 10; i++ {
		paras = append(paras, strings.Repeat("слово ", 6))
	}
	content := "# Big\n\n" + strings.Join(paras, "\n\n")

	chunks := ix.Chunk(&entities.Document{ID: "doc1", Content: content})
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.Equal(t, "Big", c.Section)
		assert.True(t, strings.HasPrefix(c.Content, "Big\n\n"))
		assert.LessOrEqual(t, utf8.RuneCountInString(strings.TrimPrefix(c.Content, "Big\n\n")), 100)
		assert.True(t, utf8.ValidString(c.Content))
	}
}

func TestIndexer_PlainTextUsesWindows(t *testing.T) {
	ix := NewIndexer(nil, nil, 50, 10, nil)
	content := strings.Repeat("Требование к системе. ", 20)

	chunks := ix.Chunk(&entities.Document{ID: "doc1", Content: content})
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.Empty(t, c.Section)
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Content), 50)
		assert.True(t, utf8.ValidString(c.Content))
	}
}

func TestNewIndexer_Defaults(t *testing.T) {
	ix := NewIndexer(nil, nil, 0, -1, nil)
	assert.Equal(t, 1000, ix.chunkSize)
	assert.Equal(t, 200, ix.chunkOverlap)

	ix = NewIndexer(nil, nil, 100, 100, nil)
	assert.Equal(t, 20, ix.chunkOverlap)
}

func TestGenerateChunkID(t *testing.T) {
	assert.Equal(t, generateChunkID("doc", 1), generateChunkID("doc", 1))
	assert.NotEqual(t, generateChunkID("doc", 1), generateChunkID("doc", 2))
	assert.Len(t, generateChunkID("doc", 1), 16)
}
