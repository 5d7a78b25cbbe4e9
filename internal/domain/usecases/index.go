// Package usecases contains application business rules.
// Clean Architecture: Usecases orchestrate entities and depend on port interfaces.
package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/0xcro3dile/reqcheck/internal/domain/entities"
	"github.com/0xcro3dile/reqcheck/internal/domain/ports"
)

// ErrNoChunks is returned when a document yields no text to index.
var ErrNoChunks = errors.New("document has no extractable text")

// Indexer chunks, embeds and stores documents so they can be searched.
type Indexer struct {
	embedder     ports.EmbeddingService
	vectorStore  ports.VectorStore
	chunkSize    int
	chunkOverlap int
	model        string
	logger       *slog.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithEmbeddingModel records which embedding model produced the stored vectors.
// A stored index built by another model is discarded and rebuilt.
func WithEmbeddingModel(model string) IndexerOption {
	return func(ix *Indexer) { ix.model = model }
}

// NewIndexer creates an Indexer with injected dependencies.
// chunkSize and chunkOverlap are in runes.
func NewIndexer(
	embedder ports.EmbeddingService,
	vectorStore ports.VectorStore,
	chunkSize, chunkOverlap int,
	logger *slog.Logger,
	opts ...IndexerOption,
) *Indexer {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	ix := &Indexer{
		embedder:     embedder,
		vectorStore:  vectorStore,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// BuildIndex makes a document searchable. If the store already holds chunks
// for the document ID from the same embedding model, they are reused without
// calling the embedding backend. Chunks from another model are replaced.
func (ix *Indexer) BuildIndex(ctx context.Context, doc *entities.Document) (*entities.Index, error) {
	index := &entities.Index{DocumentID: doc.ID, DocumentName: doc.Name}

	info, err := ix.vectorStore.Info(ctx, doc.ID)
	switch {
	case err != nil:
		ix.logger.Warn("Could not check for an existing index", "document_id", doc.ID, "error", err)
	case info.Chunks > 0 && ix.reusable(info):
		ix.logger.Info("Reusing existing index", "document", doc.Name, "document_id", doc.ID, "chunks", info.Chunks)
		index.Chunks = info.Chunks
		index.Reused = true
		return index, nil
	case info.Chunks > 0:
		ix.logger.Warn("Stored index was built with a different embedding model; re-indexing",
			"document", doc.Name, "document_id", doc.ID,
			"stored_models", info.Models, "stored_dimensions", info.Dimensions, "model", ix.model)
		if err := ix.vectorStore.Delete(ctx, doc.ID); err != nil {
			return nil, fmt.Errorf("deleting stale index: %w", err)
		}
	}

	chunks := ix.Chunk(doc)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%s: %w", doc.Name, ErrNoChunks)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	embeddings, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("embedding chunks: got %d embeddings for %d chunks", len(embeddings), len(chunks))
	}
	for i := range chunks {
		if len(embeddings[i]) == 0 || len(embeddings[i]) != len(embeddings[0]) {
			return nil, fmt.Errorf("embedding chunks: %w: chunk %d has %d dimensions, chunk 0 has %d",
				ports.ErrDimensionMismatch, i, len(embeddings[i]), len(embeddings[0]))
		}
		chunks[i].Embedding = embeddings[i]
		chunks[i].Model = ix.model
	}

	if err := ix.vectorStore.Store(ctx, chunks); err != nil {
		return nil, fmt.Errorf("storing chunks: %w", err)
	}

	ix.logger.Info("Document indexed", "document", doc.Name, "document_id", doc.ID, "chunks", len(chunks))
	index.Chunks = len(chunks)
	return index, nil
}

// reusable reports whether stored chunks were all embedded by the current model
// with a single non-zero dimension.
func (ix *Indexer) reusable(info entities.IndexInfo) bool {
	return len(info.Models) == 1 && info.Models[0] == ix.model &&
		len(info.Dimensions) == 1 && info.Dimensions[0] > 0
}

// Delete removes a document from the store.
func (ix *Indexer) Delete(ctx context.Context, documentID string) error {
	return ix.vectorStore.Delete(ctx, documentID)
}

// Chunk splits a document by markdown headings (H1-H4). Each chunk starts with its
// heading path; sections longer than the chunk size are split further.
// Documents without headings are split into overlapping windows.
func (ix *Indexer) Chunk(doc *entities.Document) []entities.Chunk {
	content := strings.TrimSpace(doc.Content)
	if content == "" {
		return nil
	}

	var chunks []entities.Chunk
	add := func(sectionPath, text string) {
		if sectionPath != "" {
			text = sectionPath + "\n\n" + text
		}
		chunks = append(chunks, entities.Chunk{
			ID:         generateChunkID(doc.ID, len(chunks)),
			DocumentID: doc.ID,
			Content:    text,
			Section:    sectionPath,
			Index:      len(chunks),
		})
	}

	sections, ok := splitSections(content)
	if !ok || len(sections) == 0 {
		for _, w := range splitWindows(content, ix.chunkSize, ix.chunkOverlap) {
			add("", w)
		}
		return chunks
	}

	for _, s := range sections {
		if utf8.RuneCountInString(s.body) <= ix.chunkSize {
			add(s.path, s.body)
			continue
		}
		for _, w := range splitWindows(s.body, ix.chunkSize, ix.chunkOverlap) {
			add(s.path, w)
		}
	}
	return chunks
}

// generateChunkID creates a deterministic ID for a chunk.
func generateChunkID(docID string, index int) string {
	hash := sha256.Sum256([]byte(docID + ":" + strconv.Itoa(index)))
	return hex.EncodeToString(hash[:8])
}
