package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/0xcro3dile/reqcheck/internal/domain/entities"
	"github.com/0xcro3dile/reqcheck/internal/domain/ports"
	"github.com/0xcro3dile/reqcheck/internal/prompts"
)

// AgentConfig tunes agent runs.
type AgentConfig struct {
	// CallTimeout bounds each backend call. Zero means no per-call deadline.
	CallTimeout time.Duration

	// SearchResults is how many web results are injected into a task.
	SearchResults int

	// Temperature is sent with every generation request. nil uses the backend default.
	Temperature *float64
}

// AgentRunner executes one persona + task against the generation backend.
// The persona becomes the system message; the task, its context blocks and
// any web search results become the user message.
type AgentRunner struct {
	catalog  *prompts.Catalog
	llm      ports.LLMService
	searcher ports.WebSearcher
	cfg      AgentConfig
	logger   *slog.Logger
}

// NewAgentRunner creates an AgentRunner. searcher may be nil to disable web search.
func NewAgentRunner(catalog *prompts.Catalog, llm ports.LLMService, searcher ports.WebSearcher, cfg AgentConfig, logger *slog.Logger) *AgentRunner {
	if cfg.SearchResults <= 0 {
		cfg.SearchResults = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AgentRunner{
		catalog:  catalog,
		llm:      llm,
		searcher: searcher,
		cfg:      cfg,
		logger:   logger,
	}
}

// Catalog returns the prompt catalog the runner renders with.
func (r *AgentRunner) Catalog() *prompts.Catalog { return r.catalog }

// Run executes the task and returns the backend's text verbatim.
// A failed web search is logged and the run proceeds without results.
func (r *AgentRunner) Run(ctx context.Context, p entities.Persona, t entities.AgentTask) (string, error) {
	var results []entities.SearchResult
	if t.SearchQuery != "" && r.searcher != nil {
		searchCtx, cancel := r.callContext(ctx)
		found, err := r.searcher.Search(searchCtx, t.SearchQuery, r.cfg.SearchResults)
		cancel()
		switch {
		case ctx.Err() != nil:
			return "", ctx.Err()
		case err != nil:
			r.logger.Warn("Web search failed, continuing without results",
				"role", p.Role,
				"query", t.SearchQuery,
				"error", err)
		default:
			results = found
		}
	}

	msgs, err := r.catalog.AgentMessages(p, t, results)
	if err != nil {
		return "", err
	}

	callCtx, cancel := r.callContext(ctx)
	defer cancel()

	start := time.Now()
	resp, err := r.llm.Generate(callCtx, entities.GenerateRequest{
		Messages:    msgs,
		Temperature: r.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("agent %q: %w", p.Role, err)
	}

	r.logger.Debug("Agent finished",
		"role", p.Role,
		"model", resp.Model,
		"context_blocks", len(t.Context),
		"search_results", len(results),
		"duration", time.Since(start))
	return resp.Content, nil
}

func (r *AgentRunner) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.CallTimeout > 0 {
		return context.WithTimeout(ctx, r.cfg.CallTimeout)
	}
	return context.WithCancel(ctx)
}
