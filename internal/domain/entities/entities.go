// Package entities contains core business entities.
// These are plain domain values with no knowledge of storage, transport or the LLM backend.
package entities

import (
	"strings"
	"time"
)

// AspectRecord is one requirements aspect with its review questions.
type AspectRecord struct {
	Aspect    string   `json:"aspect" yaml:"aspect"`
	Questions []string `json:"questions" yaml:"questions"`
}

// Clone returns a deep copy of the record.
func (r AspectRecord) Clone() AspectRecord {
	out := AspectRecord{Aspect: r.Aspect}
	if r.Questions != nil {
		out.Questions = make([]string, len(r.Questions))
		copy(out.Questions, r.Questions)
	}
	return out
}

// Checklist is the ordered list of aspects, in discovery order.
// Stages never mutate a checklist they received; they build a new one.
type Checklist []AspectRecord

// Clone returns a deep copy of the checklist.
func (c Checklist) Clone() Checklist {
	if c == nil {
		return nil
	}
	out := make(Checklist, len(c))
	for i, r := range c {
		out[i] = r.Clone()
	}
	return out
}

// QuestionCount returns the total number of questions across all aspects.
func (c Checklist) QuestionCount() int {
	n := 0
	for _, r := range c {
		n += len(r.Questions)
	}
	return n
}

// Equal reports whether two checklists hold the same aspects and questions in the same order.
func (c Checklist) Equal(other Checklist) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i].Aspect != other[i].Aspect || len(c[i].Questions) != len(other[i].Questions) {
			return false
		}
		for j := range c[i].Questions {
			if c[i].Questions[j] != other[i].Questions[j] {
				return false
			}
		}
	}
	return true
}

// HasAspect reports whether an aspect with the given name exists (case-insensitive).
func (c Checklist) HasAspect(name string) bool {
	name = strings.TrimSpace(name)
	for _, r := range c {
		if strings.EqualFold(strings.TrimSpace(r.Aspect), name) {
			return true
		}
	}
	return false
}

// AnswerStatus classifies a recorded answer.
type AnswerStatus string

const (
	AnswerFound    AnswerStatus = "answered"
	AnswerNotFound AnswerStatus = "not_found"
	AnswerError    AnswerStatus = "error"
)

// QAPair is a checklist question with the answer extracted from a document.
// For AnswerNotFound the Answer holds the canonical not-found text.
type QAPair struct {
	Question string       `json:"question"`
	Answer   string       `json:"answer"`
	Status   AnswerStatus `json:"status"`
}

// AspectResult is the document QA analogue of AspectRecord.
type AspectResult struct {
	Aspect  string   `json:"aspect"`
	QAPairs []QAPair `json:"qa_pairs"`
}

// Progress reports how far a document analysis has advanced.
type Progress struct {
	Done     int
	Total    int
	Aspect   string
	Question string
}

// Fraction returns Done/Total, or 1 for an empty batch.
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 1
	}
	return float64(p.Done) / float64(p.Total)
}

// Document represents an uploaded source document after conversion to text.
type Document struct {
	ID        string
	Name      string
	Path      string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Chunk represents a piece of a document for embedding.
type Chunk struct {
	ID         string
	DocumentID string
	Content    string
	Section    string    // Heading path, empty for window chunks
	Index      int       // Position in document
	Embedding  []float32 // Vector representation (populated by adapter)
	Model      string    // Embedding model that produced Embedding
}

// QueryResult represents a search result with relevance.
type QueryResult struct {
	Chunk     Chunk
	Score     float64 // Similarity score
	SourceDoc string  // Document name for citation
}

// Index is the handle to a document's chunks in the vector store.
type Index struct {
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name"`
	Chunks       int    `json:"chunks"`
	Reused       bool   `json:"reused"` // Chunks were already stored for this document
}

// IndexInfo describes what a store holds for one document.
type IndexInfo struct {
	Chunks     int
	Models     []string // Distinct embedding models, sorted
	Dimensions []int    // Distinct embedding lengths, ascending
}

// Persona describes who an agent is.
type Persona struct {
	Role      string
	Goal      string
	Backstory string
}

// AgentTask describes what an agent must produce.
type AgentTask struct {
	Description    string
	ExpectedOutput string
	// Context holds outputs of earlier tasks, passed explicitly and in order.
	Context []string
	// SearchQuery enables a web search before the run when non-empty.
	SearchQuery string
}

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string
	Link    string
	Snippet string
}

// ChatMessage represents a conversation turn.
type ChatMessage struct {
	Role    string // "system", "user" or "assistant"
	Content string
}

// GenerateRequest is a completion request to the generation backend.
type GenerateRequest struct {
	Messages []ChatMessage
	// Temperature is nil for the backend default.
	Temperature *float64
}

// GenerateResponse is the backend's completion.
type GenerateResponse struct {
	Content string
	Model   string
}
