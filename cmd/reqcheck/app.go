package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/0xcro3dile/reqcheck/internal/adapters/converter"
	"github.com/0xcro3dile/reqcheck/internal/adapters/embedding"
	"github.com/0xcro3dile/reqcheck/internal/adapters/llm"
	"github.com/0xcro3dile/reqcheck/internal/adapters/loader"
	"github.com/0xcro3dile/reqcheck/internal/adapters/search"
	"github.com/0xcro3dile/reqcheck/internal/adapters/transport"
	"github.com/0xcro3dile/reqcheck/internal/adapters/vectordb"
	"github.com/0xcro3dile/reqcheck/internal/config"
	"github.com/0xcro3dile/reqcheck/internal/domain/checklist"
	"github.com/0xcro3dile/reqcheck/internal/domain/entities"
	"github.com/0xcro3dile/reqcheck/internal/domain/ports"
	"github.com/0xcro3dile/reqcheck/internal/domain/report"
	"github.com/0xcro3dile/reqcheck/internal/domain/usecases"
	"github.com/0xcro3dile/reqcheck/internal/infrastructure/metrics"
	"github.com/0xcro3dile/reqcheck/internal/prompts"
)

// App wires configuration, backends and use cases together.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	catalog *prompts.Catalog
	metrics *metrics.Metrics

	llm      ports.LLMService
	embedder ports.EmbeddingService
	searcher ports.WebSearcher
	store    ports.VectorStore
	pdf      *converter.PythonPDFConverter
	loader   *loader.MultiLoader

	generator *usecases.Generator
	indexer   *usecases.Indexer
	answerer  *usecases.Answerer

	closers []func() error
}

// AnalysisResult is one analyzed document.
type AnalysisResult struct {
	Document *entities.Document
	Index    *entities.Index
	Results  []entities.AspectResult
	Markdown string
}

// NewApp creates the application from a validated config.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	catalog, err := prompts.New(cfg.Locale)
	if err != nil {
		return nil, err
	}

	app := &App{
		cfg:     cfg,
		logger:  logger,
		catalog: catalog,
		metrics: metrics.New(),
	}

	app.llm, err = app.newLLM()
	if err != nil {
		return nil, err
	}
	app.embedder, err = app.newEmbedder()
	if err != nil {
		return nil, err
	}
	app.searcher = app.newSearcher()
	if err := app.openStore(); err != nil {
		return nil, err
	}
	app.loader = app.newLoader()

	parser := checklist.NewParser(
		checklist.WithLogger(logger),
		checklist.WithFallback(checklist.FallbackFor(catalog.Locale())),
		checklist.WithFallbackHook(app.metrics.FallbackHook()),
	)
	temperature := cfg.LLM.Temperature
	agents := usecases.NewAgentRunner(catalog, app.llm, app.searcher, usecases.AgentConfig{
		CallTimeout:   cfg.LLM.CallTimeout,
		SearchResults: cfg.Search.Results,
		Temperature:   &temperature,
	}, logger)
	app.generator = usecases.NewGenerator(agents, parser, usecases.GeneratorConfig{
		Domain:        cfg.Pipeline.Domain,
		Concurrency:   cfg.Pipeline.Concurrency,
		ExpertFailure: usecases.ExpertFailurePolicy(cfg.Pipeline.ExpertFailure),
		MergeCheck:    usecases.MergeCheck(cfg.Pipeline.MergeCheck),
		MergeRetries:  cfg.Pipeline.MergeRetries,
	}, logger)
	app.indexer = usecases.NewIndexer(app.embedder, app.store, cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap, logger,
		usecases.WithEmbeddingModel(cfg.Embedding.Provider+"/"+cfg.Embedding.Model))
	app.answerer = usecases.NewAnswerer(app.embedder, app.store, app.llm, catalog, usecases.AnswerConfig{
		TopK:        cfg.Retrieval.TopK,
		Concurrency: cfg.Pipeline.Concurrency,
		CallTimeout: cfg.LLM.CallTimeout,
		OnAnswer:    app.metrics.AnswerHook(),
	}, logger)

	return app, nil
}

// transportOptions are shared by every backend client.
func (a *App) transportOptions(token string) []transport.Option {
	retry := transport.DefaultRetryConfig()
	retry.MaxAttempts = a.cfg.LLM.MaxAttempts
	return []transport.Option{
		transport.WithRetryConfig(retry),
		transport.WithBearerToken(token),
		transport.WithLogger(a.logger),
	}
}

func (a *App) newLLM() (ports.LLMService, error) {
	c := a.cfg.LLM
	switch c.Provider {
	case "openai":
		if c.APIKey == "" {
			a.logger.Warn("No API key configured for the generation backend", "base_url", c.BaseURL)
		}
		return a.metrics.LLM("openai", llm.NewOpenAIAdapter(c.BaseURL, c.Model, a.transportOptions(c.APIKey)...)), nil
	case "ollama":
		return a.metrics.LLM("ollama", llm.NewOllamaLLMAdapter(c.BaseURL, c.Model, a.transportOptions("")...)), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", c.Provider)
	}
}

func (a *App) newEmbedder() (ports.EmbeddingService, error) {
	c := a.cfg.Embedding
	switch c.Provider {
	case "openai":
		return a.metrics.Embedder("openai-embeddings", embedding.NewOpenAIAdapter(c.BaseURL, c.Model, a.transportOptions(c.APIKey)...)), nil
	case "ollama":
		return a.metrics.Embedder("ollama-embeddings", embedding.NewOllamaAdapter(c.BaseURL, c.Model, a.transportOptions("")...)), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", c.Provider)
	}
}

// newSearcher returns nil when web search is off or has no key.
func (a *App) newSearcher() ports.WebSearcher {
	c := a.cfg.Search
	if !c.Enabled {
		return nil
	}
	if c.APIKey == "" {
		a.logger.Warn("Web search enabled but no API key set; agents run without search", "env", config.EnvSerperKey)
		return nil
	}
	retry := transport.DefaultRetryConfig()
	retry.MaxAttempts = a.cfg.LLM.MaxAttempts
	return a.metrics.Searcher("serper", search.NewSerperAdapter(c.BaseURL, c.APIKey,
		transport.WithRetryConfig(retry),
		transport.WithLogger(a.logger),
	))
}

func (a *App) openStore() error {
	switch a.cfg.Store.Type {
	case "sqlite":
		store, err := vectordb.NewSQLiteStore(a.cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open vector store: %w", err)
		}
		a.store = store
		a.closers = append(a.closers, store.Close)
		a.logger.Debug("Opened sqlite vector store", "path", store.Path())
	default:
		a.store = vectordb.NewInMemoryStore()
	}
	return nil
}

func (a *App) newLoader() *loader.MultiLoader {
	converters := []ports.DocumentConverter{converter.NewHTMLConverter()}

	pandoc := converter.NewPandocConverter(a.cfg.Converter.PandocPath)
	if pandoc.Available() {
		converters = append(converters, pandoc)
	} else {
		a.logger.Debug("pandoc not found; docx conversion disabled", "path", a.cfg.Converter.PandocPath)
	}

	if a.cfg.Converter.PDFServiceURL != "" {
		a.pdf = converter.NewPythonPDFConverter(a.cfg.Converter.PDFServiceURL, transport.WithLogger(a.logger))
		converters = append(converters, a.pdf)
	}
	return loader.NewMultiLoader(converters...)
}

// PDFHealthCheck probes the pdf conversion service. It reports nil when none is configured.
func (a *App) PDFHealthCheck(ctx context.Context) error {
	if a.pdf == nil {
		return nil
	}
	if !a.pdf.IsServiceHealthy(ctx) {
		return errors.New("pdf service unreachable")
	}
	return nil
}

// TotalChunks reports the chunk count of a persistent store. ok is false for the memory store.
func (a *App) TotalChunks(ctx context.Context) (total int, ok bool) {
	counter, ok := a.store.(interface {
		ChunkCount(ctx context.Context) (int, error)
	})
	if !ok {
		return 0, false
	}
	total, err := counter.ChunkCount(ctx)
	if err != nil {
		a.logger.Warn("Counting stored chunks failed", "error", err)
		return 0, false
	}
	return total, true
}

// Generate runs the checklist generation pipeline.
func (a *App) Generate(ctx context.Context) (*usecases.GenerateResult, error) {
	return a.generator.Generate(ctx)
}

// Analyze loads, indexes and answers a document against c.
func (a *App) Analyze(ctx context.Context, path string, c entities.Checklist, progress usecases.ProgressFunc) (*AnalysisResult, error) {
	doc, err := a.loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	index, err := a.indexer.BuildIndex(ctx, doc)
	if err != nil {
		return nil, err
	}
	results, err := a.answerer.Answer(ctx, index, c, progress)
	if err != nil {
		return nil, err
	}
	return &AnalysisResult{
		Document: doc,
		Index:    index,
		Results:  results,
		Markdown: report.Document(doc.Name, results, a.catalog.Labels()),
	}, nil
}

// Checklist loads a checklist file, or returns the locale fallback when path is empty.
func (a *App) Checklist(path string) (entities.Checklist, error) {
	if path == "" {
		return checklist.FallbackFor(a.catalog.Locale()), nil
	}
	return checklist.Load(path)
}

// Close releases the vector store.
func (a *App) Close() error {
	var errs []error
	for _, closeFn := range a.closers {
		errs = append(errs, closeFn())
	}
	return errors.Join(errs...)
}
