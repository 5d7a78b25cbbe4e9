// Package config provides configuration loading and management for reqcheck.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/0xcro3dile/reqcheck/internal/prompts"
)

// Config represents the complete reqcheck configuration
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Store     StoreConfig     `yaml:"store"`
	Server    ServerConfig    `yaml:"server"`
	Converter ConverterConfig `yaml:"converter"`
	// Locale selects prompt texts and report labels (ru, en)
	Locale string `yaml:"locale"`
}

// LLMConfig configures the generation backend
type LLMConfig struct {
	// Provider is openai (any OpenAI-compatible API) or ollama
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	// APIKey is normally taken from OPENAI_API_KEY
	APIKey      string        `yaml:"api_key"`
	Temperature float64       `yaml:"temperature"`
	CallTimeout time.Duration `yaml:"call_timeout"`
	// MaxAttempts bounds retries of transient failures (429, 5xx, network)
	MaxAttempts int `yaml:"max_attempts"`
}

// EmbeddingConfig configures the embedding backend
type EmbeddingConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
}

// SearchConfig configures web search for the generation agents
type SearchConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	// APIKey is normally taken from SERPER_API_KEY
	APIKey  string `yaml:"api_key"`
	Results int    `yaml:"results"`
}

// RetrievalConfig configures document chunking and search
type RetrievalConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	TopK         int `yaml:"top_k"`
}

// PipelineConfig configures checklist generation and answering
type PipelineConfig struct {
	// Domain narrows prompts to a target industry (optional)
	Domain        string `yaml:"domain"`
	Concurrency   int    `yaml:"concurrency"`
	ExpertFailure string `yaml:"expert_failure"`
	MergeCheck    string `yaml:"merge_check"`
	MergeRetries  int    `yaml:"merge_retries"`
}

// StoreConfig configures the vector store
type StoreConfig struct {
	// Type is memory or sqlite
	Type string `yaml:"type"`
	// Path is the sqlite data directory
	Path string `yaml:"path"`
}

// ServerConfig configures the web UI
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// ConverterConfig configures document converters
type ConverterConfig struct {
	PandocPath    string `yaml:"pandoc_path"`
	PDFServiceURL string `yaml:"pdf_service_url"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "openai",
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4.1",
			Temperature: 0,
			CallTimeout: 3 * time.Minute,
			MaxAttempts: 3,
		},
		Embedding: EmbeddingConfig{
			Provider: "openai",
			BaseURL:  "https://api.openai.com/v1",
			Model:    "text-embedding-3-small",
		},
		Search: SearchConfig{
			Enabled:  true,
			Provider: "serper",
			BaseURL:  "https://google.serper.dev",
			Results:  5,
		},
		Retrieval: RetrievalConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
			TopK:         4,
		},
		Pipeline: PipelineConfig{
			Concurrency:   1,
			ExpertFailure: "abort",
			MergeCheck:    "retry",
			MergeRetries:  1,
		},
		Store: StoreConfig{
			Type: "memory",
			Path: ".reqcheck",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Converter: ConverterConfig{
			PandocPath:    "pandoc",
			PDFServiceURL: "http://localhost:8081",
		},
		Locale: prompts.DefaultLocale,
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if err := oneOf("llm.provider", c.LLM.Provider, "openai", "ollama"); err != nil {
		return err
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2")
	}
	if c.LLM.CallTimeout < 0 {
		return fmt.Errorf("llm.call_timeout must not be negative")
	}
	if c.LLM.MaxAttempts < 1 {
		return fmt.Errorf("llm.max_attempts must be at least 1")
	}

	if err := oneOf("embedding.provider", c.Embedding.Provider, "openai", "ollama"); err != nil {
		return err
	}
	if c.Embedding.BaseURL == "" || c.Embedding.Model == "" {
		return fmt.Errorf("embedding.base_url and embedding.model are required")
	}

	if c.Search.Enabled {
		if err := oneOf("search.provider", c.Search.Provider, "serper"); err != nil {
			return err
		}
		if c.Search.Results < 1 {
			return fmt.Errorf("search.results must be at least 1")
		}
	}

	if c.Retrieval.ChunkSize < 1 {
		return fmt.Errorf("retrieval.chunk_size must be positive")
	}
	if c.Retrieval.ChunkOverlap < 0 || c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize {
		return fmt.Errorf("retrieval.chunk_overlap must be in [0, chunk_size)")
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("retrieval.top_k must be at least 1")
	}

	if c.Pipeline.Concurrency < 1 {
		return fmt.Errorf("pipeline.concurrency must be at least 1")
	}
	if err := oneOf("pipeline.expert_failure", c.Pipeline.ExpertFailure, "abort", "skip"); err != nil {
		return err
	}
	if err := oneOf("pipeline.merge_check", c.Pipeline.MergeCheck, "off", "retry", "strict"); err != nil {
		return err
	}
	if c.Pipeline.MergeRetries < 0 {
		return fmt.Errorf("pipeline.merge_retries must not be negative")
	}

	if err := oneOf("store.type", c.Store.Type, "memory", "sqlite"); err != nil {
		return err
	}
	if c.Store.Type == "sqlite" && c.Store.Path == "" {
		return fmt.Errorf("store.path is required for the sqlite store")
	}

	if err := oneOf("locale", c.Locale, prompts.Locales()...); err != nil {
		return err
	}
	return nil
}

func oneOf(field, value string, allowed ...string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	return fmt.Errorf("%s must be one of %v, got %q", field, allowed, value)
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := config.apply(path); err != nil {
		return nil, err
	}
	return config, nil
}

// apply overlays the keys present in a YAML file onto c.
func (c *Config) apply(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// SaveToFile saves configuration to a YAML file. Secrets are not written.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := c.Redacted()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Redacted returns the YAML form of c with API keys removed.
func (c *Config) Redacted() ([]byte, error) {
	out := *c
	out.LLM.APIKey = ""
	out.Embedding.APIKey = ""
	out.Search.APIKey = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// LLM
	mergeString(&c.LLM.Provider, other.LLM.Provider)
	mergeString(&c.LLM.BaseURL, other.LLM.BaseURL)
	mergeString(&c.LLM.Model, other.LLM.Model)
	mergeString(&c.LLM.APIKey, other.LLM.APIKey)
	if other.LLM.Temperature != 0 {
		c.LLM.Temperature = other.LLM.Temperature
	}
	if other.LLM.CallTimeout != 0 {
		c.LLM.CallTimeout = other.LLM.CallTimeout
	}
	mergeInt(&c.LLM.MaxAttempts, other.LLM.MaxAttempts)

	// Embedding
	mergeString(&c.Embedding.Provider, other.Embedding.Provider)
	mergeString(&c.Embedding.BaseURL, other.Embedding.BaseURL)
	mergeString(&c.Embedding.Model, other.Embedding.Model)
	mergeString(&c.Embedding.APIKey, other.Embedding.APIKey)

	// Search
	mergeString(&c.Search.Provider, other.Search.Provider)
	mergeString(&c.Search.BaseURL, other.Search.BaseURL)
	mergeString(&c.Search.APIKey, other.Search.APIKey)
	mergeInt(&c.Search.Results, other.Search.Results)

	// Retrieval
	mergeInt(&c.Retrieval.ChunkSize, other.Retrieval.ChunkSize)
	mergeInt(&c.Retrieval.ChunkOverlap, other.Retrieval.ChunkOverlap)
	mergeInt(&c.Retrieval.TopK, other.Retrieval.TopK)

	// Pipeline
	mergeString(&c.Pipeline.Domain, other.Pipeline.Domain)
	mergeInt(&c.Pipeline.Concurrency, other.Pipeline.Concurrency)
	mergeString(&c.Pipeline.ExpertFailure, other.Pipeline.ExpertFailure)
	mergeString(&c.Pipeline.MergeCheck, other.Pipeline.MergeCheck)
	mergeInt(&c.Pipeline.MergeRetries, other.Pipeline.MergeRetries)

	// Store, server, converters
	mergeString(&c.Store.Type, other.Store.Type)
	mergeString(&c.Store.Path, other.Store.Path)
	mergeString(&c.Server.Addr, other.Server.Addr)
	mergeString(&c.Converter.PandocPath, other.Converter.PandocPath)
	mergeString(&c.Converter.PDFServiceURL, other.Converter.PDFServiceURL)

	mergeString(&c.Locale, other.Locale)
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
