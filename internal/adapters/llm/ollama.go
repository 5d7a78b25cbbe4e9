package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/0xcro3dile/reqcheck/internal/adapters/transport"
	"github.com/0xcro3dile/reqcheck/internal/domain/entities"
)

// OllamaLLMAdapter implements ports.LLMService using the Ollama generate API.
type OllamaLLMAdapter struct {
	baseURL string
	model   string
	client  *transport.Client
}

// NewOllamaLLMAdapter creates a new Ollama LLM adapter.
func NewOllamaLLMAdapter(baseURL, model string, opts ...transport.Option) *OllamaLLMAdapter {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}
	return &OllamaLLMAdapter{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  transport.New("ollama", opts...),
	}
}

// ollamaGenerateRequest is the Ollama generate API request.
type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	System  string         `json:"system,omitempty"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// ollamaGenerateResponse is the Ollama generate API response.
type ollamaGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate produces a response. System messages become the system prompt,
// the remaining messages are joined into the prompt.
func (a *OllamaLLMAdapter) Generate(ctx context.Context, req entities.GenerateRequest) (*entities.GenerateResponse, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	var system, prompt []string
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = append(system, m.Content)
		} else {
			prompt = append(prompt, m.Content)
		}
	}

	body := ollamaGenerateRequest{
		Model:  a.model,
		System: strings.Join(system, "\n\n"),
		Prompt: strings.Join(prompt, "\n\n"),
		Stream: false,
	}
	if req.Temperature != nil {
		body.Options = map[string]any{"temperature": *req.Temperature}
	}

	var resp ollamaGenerateResponse
	if err := a.client.PostJSON(ctx, a.baseURL+"/api/generate", body, &resp); err != nil {
		return nil, err
	}

	model := resp.Model
	if model == "" {
		model = a.model
	}
	return &entities.GenerateResponse{Content: resp.Response, Model: model}, nil
}
