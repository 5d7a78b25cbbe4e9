// Package embedding provides the embedding backend adapters.
// Clean Architecture: Adapters implementing ports.EmbeddingService.
// They know about the backend wire formats but the domain layer doesn't.
package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/0xcro3dile/reqcheck/internal/adapters/transport"
)

// OllamaAdapter implements ports.EmbeddingService using Ollama API.
type OllamaAdapter struct {
	baseURL string
	model   string
	client  *transport.Client
}

// NewOllamaAdapter creates a new Ollama embedding adapter.
func NewOllamaAdapter(baseURL, model string, opts ...transport.Option) *OllamaAdapter {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	return &OllamaAdapter{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  transport.New("ollama-embeddings", opts...),
	}
}

// ollamaEmbedRequest is the Ollama API request format.
type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// ollamaEmbedResponse is the Ollama API response format.
type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed generates an embedding for a single text.
func (a *OllamaAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp ollamaEmbedResponse
	err := a.client.PostJSON(ctx, a.baseURL+"/api/embeddings", ollamaEmbedRequest{
		Model:  a.model,
		Prompt: text,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned an empty embedding")
	}
	return resp.Embedding, nil
}

// EmbedBatch generates embeddings for multiple texts.
// The endpoint takes one prompt per call, so texts are embedded sequentially.
func (a *OllamaAdapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := a.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}
