package metrics

import (
	"context"
	"time"

	"github.com/0xcro3dile/reqcheck/internal/domain/entities"
	"github.com/0xcro3dile/reqcheck/internal/domain/ports"
)

type llmService struct {
	backend string
	next    ports.LLMService
	m       *Metrics
}

// LLM wraps a generation backend so every call is counted and timed.
func (m *Metrics) LLM(backend string, next ports.LLMService) ports.LLMService {
	return &llmService{backend: backend, next: next, m: m}
}

func (s *llmService) Generate(ctx context.Context, req entities.GenerateRequest) (*entities.GenerateResponse, error) {
	start := time.Now()
	resp, err := s.next.Generate(ctx, req)
	s.m.ObserveCall(s.backend, start, err)
	return resp, err
}

type embeddingService struct {
	backend string
	next    ports.EmbeddingService
	m       *Metrics
}

// Embedder wraps an embedding backend. A batch counts as one call.
func (m *Metrics) Embedder(backend string, next ports.EmbeddingService) ports.EmbeddingService {
	return &embeddingService{backend: backend, next: next, m: m}
}

func (s *embeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	v, err := s.next.Embed(ctx, text)
	s.m.ObserveCall(s.backend, start, err)
	return v, err
}

func (s *embeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	v, err := s.next.EmbedBatch(ctx, texts)
	s.m.ObserveCall(s.backend, start, err)
	return v, err
}

type webSearcher struct {
	backend string
	next    ports.WebSearcher
	m       *Metrics
}

// Searcher wraps a web search backend.
func (m *Metrics) Searcher(backend string, next ports.WebSearcher) ports.WebSearcher {
	return &webSearcher{backend: backend, next: next, m: m}
}

func (s *webSearcher) Search(ctx context.Context, query string, limit int) ([]entities.SearchResult, error) {
	start := time.Now()
	r, err := s.next.Search(ctx, query, limit)
	s.m.ObserveCall(s.backend, start, err)
	return r, err
}
