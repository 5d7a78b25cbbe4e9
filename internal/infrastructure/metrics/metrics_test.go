package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/reqcheck/internal/adapters/transport"
	"github.com/0xcro3dile/reqcheck/internal/domain/entities"
)

type stubLLM struct{ err error }

func (s stubLLM) Generate(ctx context.Context, req entities.GenerateRequest) (*entities.GenerateResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &entities.GenerateResponse{Content: "ok"}, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1}, nil
}

func (stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)), nil
}

type stubSearcher struct{ err error }

func (s stubSearcher) Search(ctx context.Context, query string, limit int) ([]entities.SearchResult, error) {
	return nil, s.err
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, OutcomeOK},
		{context.Canceled, OutcomeCanceled},
		{fmt.Errorf("call: %w", context.DeadlineExceeded), OutcomeCanceled},
		{transport.NewTransientError(errors.New("503")), OutcomeTransient},
		{transport.NewFatalError(errors.New("401")), OutcomeFatal},
		{errors.New("plain"), OutcomeFatal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Outcome(tt.err), "err = %v", tt.err)
	}
}

func TestDecorators_CountCalls(t *testing.T) {
	m := New()
	ctx := context.Background()

	llm := m.LLM("openai", stubLLM{})
	_, err := llm.Generate(ctx, entities.GenerateRequest{})
	require.NoError(t, err)
	_, err = m.LLM("openai", stubLLM{err: transport.NewTransientError(errors.New("429"))}).Generate(ctx, entities.GenerateRequest{})
	require.Error(t, err)

	emb := m.Embedder("embeddings", stubEmbedder{})
	_, _ = emb.Embed(ctx, "a")
	_, _ = emb.EmbedBatch(ctx, []string{"a", "b"})

	_, err = m.Searcher("serper", stubSearcher{err: errors.New("bad key")}).Search(ctx, "q", 5)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.backendCalls.WithLabelValues("openai", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backendCalls.WithLabelValues("openai", OutcomeTransient)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.backendCalls.WithLabelValues("embeddings", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backendCalls.WithLabelValues("serper", OutcomeFatal)))
	assert.Equal(t, 3, testutil.CollectAndCount(m.backendDuration))
}

func TestHooks(t *testing.T) {
	m := New()

	fallback := m.FallbackHook()
	fallback(errors.New("malformed"))
	fallback(errors.New("malformed"))

	answer := m.AnswerHook()
	answer(entities.AnswerFound)
	answer(entities.AnswerNotFound)
	answer(entities.AnswerNotFound)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.fallbacks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.answers.WithLabelValues("answered")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.answers.WithLabelValues("not_found")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.AnswerHook()(entities.AnswerError)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `reqcheck_answers_total{status="error"} 1`), text)
	assert.Contains(t, text, "go_goroutines")
}
