// Package ports defines interfaces for external dependencies.
// Usecases depend on these abstractions; adapters implement them.
package ports

import (
	"context"
	"errors"

	"github.com/0xcro3dile/reqcheck/internal/domain/entities"
)

// EmbeddingService generates vector embeddings for text.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// LLMService generates text from a language model.
type LLMService interface {
	Generate(ctx context.Context, req entities.GenerateRequest) (*entities.GenerateResponse, error)
}

// ErrDimensionMismatch is returned by VectorStore.Search when the query and stored
// embeddings differ in length.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// VectorStore persists and queries document embeddings.
type VectorStore interface {
	// Store saves chunks with their embeddings.
	Store(ctx context.Context, chunks []entities.Chunk) error

	// Search finds the chunks of one document most similar to a query embedding.
	Search(ctx context.Context, documentID string, embedding []float32, topK int) ([]entities.QueryResult, error)

	// Count returns how many chunks are stored for a document.
	Count(ctx context.Context, documentID string) (int, error)

	// Info reports the chunk count, embedding models and dimensions stored for a document.
	Info(ctx context.Context, documentID string) (entities.IndexInfo, error)

	// Delete removes all chunks for a document.
	Delete(ctx context.Context, documentID string) error

	// Clear removes all data from the store.
	Clear(ctx context.Context) error
}

// WebSearcher runs a web search.
type WebSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]entities.SearchResult, error)
}

// DocumentConverter turns a binary document format into markdown text.
type DocumentConverter interface {
	// Convert extracts markdown from document bytes.
	Convert(ctx context.Context, data []byte, filename string) (string, error)

	// SupportedExtensions returns extensions this converter handles (e.g. ".docx").
	SupportedExtensions() []string
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)
