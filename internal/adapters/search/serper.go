// Package search provides the web search adapter used by the agent runner.
// Clean Architecture: Adapter implementing ports.WebSearcher.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/0xcro3dile/reqcheck/internal/adapters/transport"
	"github.com/0xcro3dile/reqcheck/internal/domain/entities"
)

// SerperAdapter implements ports.WebSearcher using the Serper Google search API.
type SerperAdapter struct {
	url    string
	client *transport.Client
}

// NewSerperAdapter creates a Serper adapter. apiKey is sent as X-API-KEY.
func NewSerperAdapter(baseURL, apiKey string, opts ...transport.Option) *SerperAdapter {
	if baseURL == "" {
		baseURL = "https://google.serper.dev"
	}
	opts = append([]transport.Option{transport.WithHeader("X-API-KEY", apiKey)}, opts...)
	return &SerperAdapter{
		url:    strings.TrimSuffix(baseURL, "/") + "/search",
		client: transport.New("serper", opts...),
	}
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
}

type serperResponse struct {
	AnswerBox *struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Answer  string `json:"answer"`
	} `json:"answerBox"`
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

// Search returns up to limit organic results for query, answer box first.
func (a *SerperAdapter) Search(ctx context.Context, query string, limit int) ([]entities.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty search query")
	}
	if limit <= 0 {
		limit = 5
	}

	var resp serperResponse
	if err := a.client.PostJSON(ctx, a.url, serperRequest{Q: query, Num: limit}, &resp); err != nil {
		return nil, err
	}

	results := make([]entities.SearchResult, 0, limit)
	if box := resp.AnswerBox; box != nil {
		snippet := box.Snippet
		if snippet == "" {
			snippet = box.Answer
		}
		if snippet != "" {
			results = append(results, entities.SearchResult{Title: box.Title, Link: box.Link, Snippet: snippet})
		}
	}
	for _, o := range resp.Organic {
		if len(results) >= limit {
			break
		}
		results = append(results, entities.SearchResult{Title: o.Title, Link: o.Link, Snippet: o.Snippet})
	}
	return results, nil
}
