package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/0xcro3dile/reqcheck/internal/adapters/transport"
)

// maxBatch is the number of inputs sent per embeddings request.
const maxBatch = 256

// OpenAIAdapter implements ports.EmbeddingService with the OpenAI embeddings API.
type OpenAIAdapter struct {
	url    string
	model  string
	client *transport.Client
}

// NewOpenAIAdapter creates an embeddings adapter for an OpenAI-compatible baseURL.
func NewOpenAIAdapter(baseURL, model string, opts ...transport.Option) *OpenAIAdapter {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	if !strings.HasSuffix(baseURL, "/embeddings") {
		baseURL += "/embeddings"
	}
	return &OpenAIAdapter{
		url:    baseURL,
		model:  model,
		client: transport.New("openai-embeddings", opts...),
	}
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed generates an embedding for a single text.
func (a *OpenAIAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := a.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in batches of maxBatch, preserving input order.
func (a *OpenAIAdapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		end := min(start+maxBatch, len(texts))

		var resp embeddingsResponse
		err := a.client.PostJSON(ctx, a.url, embeddingsRequest{Model: a.model, Input: texts[start:end]}, &resp)
		if err != nil {
			return nil, fmt.Errorf("embedding texts %d-%d: %w", start, end-1, err)
		}

		for _, d := range resp.Data {
			if d.Index < 0 || start+d.Index >= end {
				return nil, fmt.Errorf("embedding index %d out of range", d.Index)
			}
			out[start+d.Index] = d.Embedding
		}
	}
	for i, emb := range out {
		if len(emb) == 0 {
			return nil, fmt.Errorf("no embedding returned for text %d", i)
		}
	}
	return out, nil
}
