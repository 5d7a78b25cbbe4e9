package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIAdapter_EmbedBatchOrdersByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)

		var req embeddingsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)

		// reply in reverse order; the adapter must reorder by index
		fmt.Fprint(w, `{"data":[`)
		for i := len(req.Input) - 1; i >= 0; i-- {
			fmt.Fprintf(w, `{"index":%d,"embedding":[%d]}`, i, len(req.Input[i]))
			if i > 0 {
				fmt.Fprint(w, ",")
			}
		}
		fmt.Fprint(w, `]}`)
	}))
	defer server.Close()

	adapter := NewOpenAIAdapter(server.URL+"/v1/", "")
	out, err := adapter.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})

	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}, {3}}, out)
}

func TestOpenAIAdapter_SplitsLargeBatches(t *testing.T) {
	var sizes []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingsRequest
		json.NewDecoder(r.Body).Decode(&req)
		sizes = append(sizes, len(req.Input))

		resp := embeddingsResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: []float32{0.5}})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	texts := make([]string, maxBatch+10)
	for i := range texts {
		texts[i] = "t"
	}

	adapter := NewOpenAIAdapter(server.URL, "m")
	out, err := adapter.EmbedBatch(context.Background(), texts)

	require.NoError(t, err)
	assert.Len(t, out, len(texts))
	assert.Equal(t, []int{maxBatch, 10}, sizes)
}

func TestOpenAIAdapter_MissingEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"index":0,"embedding":[1]}]}`))
	}))
	defer server.Close()

	adapter := NewOpenAIAdapter(server.URL, "m")
	_, err := adapter.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestOpenAIAdapter_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1,0.2]}]}`))
	}))
	defer server.Close()

	adapter := NewOpenAIAdapter(server.URL, "m")
	emb, err := adapter.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, emb)
}
