package vectordb

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/0xcro3dile/reqcheck/internal/domain/entities"
	"github.com/0xcro3dile/reqcheck/internal/domain/ports"
)

// cosineSimilarity calculates cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// rank scores chunks against the query and returns the topK best, ties broken by chunk order.
// A chunk whose embedding length differs from the query fails the whole search.
func rank(query []float32, chunks []entities.Chunk, topK int) ([]entities.QueryResult, error) {
	results := make([]entities.QueryResult, len(chunks))
	for i, c := range chunks {
		if len(c.Embedding) != len(query) {
			return nil, fmt.Errorf("%w: query has %d dimensions, chunk %s of document %s has %d (model %q)",
				ports.ErrDimensionMismatch, len(query), c.ID, c.DocumentID, len(c.Embedding), c.Model)
		}
		results[i] = entities.QueryResult{
			Chunk:     c,
			Score:     cosineSimilarity(query, c.Embedding),
			SourceDoc: c.DocumentID,
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.Index < results[j].Chunk.Index
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// describe summarizes the chunks stored for one document.
func describe(chunks []entities.Chunk) entities.IndexInfo {
	info := entities.IndexInfo{Chunks: len(chunks)}
	for _, c := range chunks {
		if !slices.Contains(info.Models, c.Model) {
			info.Models = append(info.Models, c.Model)
		}
		if !slices.Contains(info.Dimensions, len(c.Embedding)) {
			info.Dimensions = append(info.Dimensions, len(c.Embedding))
		}
	}
	slices.Sort(info.Models)
	slices.Sort(info.Dimensions)
	return info
}
