package usecases

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/0xcro3dile/reqcheck/internal/domain/entities"
)

// mockEmbedder implements ports.EmbeddingService for testing.
type mockEmbedder struct {
	mu       sync.Mutex
	calls    int
	batches  int
	failWith error
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batches++
	m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = []float32{0.1, 0.2, 0.3}
	}
	return result, nil
}

// raggedEmbedder returns embeddings whose length grows with the input position.
type raggedEmbedder struct{}

func (raggedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1}, nil
}

func (raggedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = make([]float32, i+1)
	}
	return result, nil
}

// mockVectorStore implements ports.VectorStore for testing.
// Search returns every stored chunk of the document, up to topK.
type mockVectorStore struct {
	mu       sync.Mutex
	chunks   []entities.Chunk
	searches []string
	failWith error
}

func (m *mockVectorStore) Store(ctx context.Context, chunks []entities.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = append(m.chunks, chunks...)
	return nil
}

func (m *mockVectorStore) Search(ctx context.Context, documentID string, embedding []float32, topK int) ([]entities.QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches = append(m.searches, documentID)
	if m.failWith != nil {
		return nil, m.failWith
	}
	var results []entities.QueryResult
	for _, c := range m.chunks {
		if c.DocumentID != documentID {
			continue
		}
		results = append(results, entities.QueryResult{Chunk: c, Score: 0.9})
		if len(results) == topK {
			break
		}
	}
	return results, nil
}

func (m *mockVectorStore) Count(ctx context.Context, documentID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.chunks {
		if c.DocumentID == documentID {
			n++
		}
	}
	return n, nil
}

func (m *mockVectorStore) Info(ctx context.Context, documentID string) (entities.IndexInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var info entities.IndexInfo
	for _, c := range m.chunks {
		if c.DocumentID != documentID {
			continue
		}
		info.Chunks++
		if !slices.Contains(info.Models, c.Model) {
			info.Models = append(info.Models, c.Model)
		}
		if !slices.Contains(info.Dimensions, len(c.Embedding)) {
			info.Dimensions = append(info.Dimensions, len(c.Embedding))
		}
	}
	return info, nil
}

func (m *mockVectorStore) Delete(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.chunks[:0]
	for _, c := range m.chunks {
		if c.DocumentID != documentID {
			kept = append(kept, c)
		}
	}
	m.chunks = kept
	return nil
}

func (m *mockVectorStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = nil
	return nil
}

// mockLLM implements ports.LLMService for testing. respond sees every request;
// requests are recorded in arrival order.
type mockLLM struct {
	mu       sync.Mutex
	requests []entities.GenerateRequest
	respond  func(req entities.GenerateRequest) (string, error)
}

func (m *mockLLM) Generate(ctx context.Context, req entities.GenerateRequest) (*entities.GenerateResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content := "mocked answer"
	if m.respond != nil {
		var err error
		if content, err = m.respond(req); err != nil {
			return nil, err
		}
	}
	return &entities.GenerateResponse{Content: content, Model: "mock"}, nil
}

func (m *mockLLM) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *mockLLM) callsMatching(substr string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.requests {
		if strings.Contains(systemOf(r), substr) {
			n++
		}
	}
	return n
}

// mockSearcher implements ports.WebSearcher for testing.
type mockSearcher struct {
	mu       sync.Mutex
	queries  []string
	results  []entities.SearchResult
	failWith error
}

func (m *mockSearcher) Search(ctx context.Context, query string, limit int) ([]entities.SearchResult, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	if limit < len(m.results) {
		return m.results[:limit], nil
	}
	return m.results, nil
}

var errBackend = errors.New("backend unavailable")

func systemOf(req entities.GenerateRequest) string {
	for _, msg := range req.Messages {
		if msg.Role == "system" {
			return msg.Content
		}
	}
	return ""
}

func userOf(req entities.GenerateRequest) string {
	for _, msg := range req.Messages {
		if msg.Role == "user" {
			return msg.Content
		}
	}
	return ""
}
