package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/0xcro3dile/reqcheck/internal/domain/entities"
	"github.com/0xcro3dile/reqcheck/internal/domain/ports"
	"github.com/0xcro3dile/reqcheck/internal/prompts"
)

// ProgressFunc is called once per answered question. Calls are serialized.
type ProgressFunc func(entities.Progress)

// AnswerConfig tunes document question answering.
type AnswerConfig struct {
	// TopK is how many chunks are retrieved per question.
	TopK int

	// Concurrency bounds how many questions are answered at once.
	Concurrency int

	// CallTimeout bounds each question's backend calls. Zero means no deadline.
	CallTimeout time.Duration

	// OnAnswer, if set, observes the status of every recorded answer.
	OnAnswer func(entities.AnswerStatus)
}

// Answerer answers checklist questions from an indexed document.
type Answerer struct {
	embedder    ports.EmbeddingService
	vectorStore ports.VectorStore
	llm         ports.LLMService
	catalog     *prompts.Catalog
	cfg         AnswerConfig
	logger      *slog.Logger
}

// NewAnswerer creates an Answerer with injected dependencies.
func NewAnswerer(
	embedder ports.EmbeddingService,
	vectorStore ports.VectorStore,
	llm ports.LLMService,
	catalog *prompts.Catalog,
	cfg AnswerConfig,
	logger *slog.Logger,
) *Answerer {
	if cfg.TopK <= 0 {
		cfg.TopK = 4
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Answerer{
		embedder:    embedder,
		vectorStore: vectorStore,
		llm:         llm,
		catalog:     catalog,
		cfg:         cfg,
		logger:      logger,
	}
}

// Answer answers every question of the checklist against the indexed document.
// Results keep checklist order. A failing question is recorded with the error
// status and never stops the batch; only context cancellation does.
func (a *Answerer) Answer(ctx context.Context, index *entities.Index, c entities.Checklist, progress ProgressFunc) ([]entities.AspectResult, error) {
	results := make([]entities.AspectResult, len(c))
	for i, rec := range c {
		results[i] = entities.AspectResult{
			Aspect:  rec.Aspect,
			QAPairs: make([]entities.QAPair, len(rec.Questions)),
		}
	}

	total := c.QuestionCount()
	if total == 0 {
		return results, nil
	}

	logger := a.logger.With("document_id", index.DocumentID)
	logger.Info("Answering checklist", "aspects", len(c), "questions", total)

	var (
		mu   sync.Mutex
		done int
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(a.cfg.Concurrency)

questions:
	for ai, rec := range c {
		for qi, question := range rec.Questions {
			if ctx.Err() != nil {
				break questions
			}
			eg.Go(func() error {
				if err := egCtx.Err(); err != nil {
					return err
				}
				pair := a.answerOne(egCtx, logger, index, rec.Aspect, question)
				results[ai].QAPairs[qi] = pair

				mu.Lock()
				defer mu.Unlock()
				done++
				if a.cfg.OnAnswer != nil {
					a.cfg.OnAnswer(pair.Status)
				}
				if progress != nil {
					progress(entities.Progress{Done: done, Total: total, Aspect: rec.Aspect, Question: question})
				}
				return nil
			})
		}
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (a *Answerer) answerOne(ctx context.Context, logger *slog.Logger, index *entities.Index, aspect, question string) entities.QAPair {
	var cancel context.CancelFunc
	if a.cfg.CallTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, a.cfg.CallTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	answer, err := a.ask(ctx, index, question)
	if err != nil {
		logger.Warn("Failed to answer question", "aspect", aspect, "question", question, "error", err)
		return entities.QAPair{Question: question, Answer: a.catalog.Labels().Error, Status: entities.AnswerError}
	}

	notFound := a.catalog.Labels().NotFound
	answer = strings.TrimSpace(answer)
	if answer == "" || containsFold(answer, notFound) {
		return entities.QAPair{Question: question, Answer: notFound, Status: entities.AnswerNotFound}
	}
	return entities.QAPair{Question: question, Answer: answer, Status: entities.AnswerFound}
}

// ask retrieves context for one question and asks the backend, constrained to that context.
// An empty retrieval yields an empty answer without a generation call.
func (a *Answerer) ask(ctx context.Context, index *entities.Index, question string) (string, error) {
	embedding, err := a.embedder.Embed(ctx, question)
	if err != nil {
		return "", fmt.Errorf("embedding question: %w", err)
	}

	hits, err := a.vectorStore.Search(ctx, index.DocumentID, embedding, a.cfg.TopK)
	if err != nil {
		return "", fmt.Errorf("searching vectors: %w", err)
	}

	contextParts := make([]string, 0, len(hits))
	for _, h := range hits {
		if text := strings.TrimSpace(h.Chunk.Content); text != "" {
			contextParts = append(contextParts, text)
		}
	}
	if len(contextParts) == 0 {
		return "", nil
	}

	prompt, err := a.catalog.GroundedQA(question, contextParts)
	if err != nil {
		return "", err
	}

	temp := 0.0
	resp, err := a.llm.Generate(ctx, entities.GenerateRequest{
		Messages:    []entities.ChatMessage{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	return resp.Content, nil
}

func containsFold(s, substr string) bool {
	if substr == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(substr)))
}
