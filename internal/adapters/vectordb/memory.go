// Package vectordb provides vector store adapters.
// Clean Architecture: Adapters implementing ports.VectorStore.
// The in-memory store serves single runs; the SQLite store keeps indexes across runs.
package vectordb

import (
	"context"
	"sync"

	"github.com/0xcro3dile/reqcheck/internal/domain/entities"
)

// InMemoryStore is an in-memory vector store.
type InMemoryStore struct {
	mu     sync.RWMutex
	chunks map[string]entities.Chunk // chunkID -> chunk
	docs   map[string][]string       // docID -> []chunkID
}

// NewInMemoryStore creates a new in-memory vector store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		chunks: make(map[string]entities.Chunk),
		docs:   make(map[string][]string),
	}
}

// Store saves chunks with their embeddings. A chunk ID stored twice is replaced.
func (s *InMemoryStore) Store(ctx context.Context, chunks []entities.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chunk := range chunks {
		if _, exists := s.chunks[chunk.ID]; !exists {
			s.docs[chunk.DocumentID] = append(s.docs[chunk.DocumentID], chunk.ID)
		}
		s.chunks[chunk.ID] = chunk
	}
	return nil
}

// Search finds the chunks of one document most similar to a query embedding.
func (s *InMemoryStore) Search(ctx context.Context, documentID string, embedding []float32, topK int) ([]entities.QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rank(embedding, s.documentChunks(documentID), topK)
}

// Info reports the chunk count, embedding models and dimensions stored for a document.
func (s *InMemoryStore) Info(ctx context.Context, documentID string) (entities.IndexInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return describe(s.documentChunks(documentID)), nil
}

func (s *InMemoryStore) documentChunks(documentID string) []entities.Chunk {
	ids := s.docs[documentID]
	chunks := make([]entities.Chunk, 0, len(ids))
	for _, id := range ids {
		chunks = append(chunks, s.chunks[id])
	}
	return chunks
}

// Count returns how many chunks are stored for a document.
func (s *InMemoryStore) Count(ctx context.Context, documentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs[documentID]), nil
}

// Delete removes all chunks for a document.
func (s *InMemoryStore) Delete(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chunkIDs, ok := s.docs[documentID]
	if !ok {
		return nil
	}

	for _, id := range chunkIDs {
		delete(s.chunks, id)
	}
	delete(s.docs, documentID)
	return nil
}

// Clear removes all data from the store.
func (s *InMemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunks = make(map[string]entities.Chunk)
	s.docs = make(map[string][]string)
	return nil
}
