// Package llm provides the generation backend adapters.
// Clean Architecture: Adapters implementing ports.LLMService.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/0xcro3dile/reqcheck/internal/adapters/transport"
	"github.com/0xcro3dile/reqcheck/internal/domain/entities"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIAdapter implements ports.LLMService with an OpenAI-compatible chat completions API.
type OpenAIAdapter struct {
	url    string
	model  string
	client *transport.Client
}

// NewOpenAIAdapter creates an adapter for baseURL (OpenAI, OpenRouter, vLLM, ...).
func NewOpenAIAdapter(baseURL, model string, opts ...transport.Option) *OpenAIAdapter {
	if model == "" {
		model = "gpt-4.1"
	}
	return &OpenAIAdapter{
		url:    chatCompletionsURL(baseURL),
		model:  model,
		client: transport.New("openai", opts...),
	}
}

func chatCompletionsURL(baseURL string) string {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}
	return baseURL + "/chat/completions"
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Generate sends the chat messages and returns the first choice.
func (a *OpenAIAdapter) Generate(ctx context.Context, req entities.GenerateRequest) (*entities.GenerateResponse, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	body := chatRequest{
		Model:       a.model,
		Messages:    make([]chatMessage, len(req.Messages)),
		Temperature: req.Temperature, // nil = endpoint default, 0 = deterministic
	}
	for i, m := range req.Messages {
		body.Messages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}

	var resp chatResponse
	if err := a.client.PostJSON(ctx, a.url, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, transport.NewFatalError(fmt.Errorf("no choices in response"))
	}

	model := resp.Model
	if model == "" {
		model = a.model
	}
	return &entities.GenerateResponse{
		Content: resp.Choices[0].Message.Content,
		Model:   model,
	}, nil
}
