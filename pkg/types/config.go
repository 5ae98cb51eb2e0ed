// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "expert-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// MilvusConfig holds connection settings for the Milvus vector database.
type MilvusConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the Milvus HTTP endpoint (e.g. "http://localhost:19530").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Token authenticates requests ("user:password" or an API key).
	// Usually loaded from .secrets/milvus-token rather than the config file.
	Token string `json:"token,omitempty" yaml:"token,omitempty"`

	// DBName selects the Milvus database (default "default").
	DBName string `json:"db_name" yaml:"db_name"`
}

// EmbeddingProvider identifies the embedding backend.
type EmbeddingProvider string

const (
	ProviderOpenAI EmbeddingProvider = "openai"
	ProviderTEI    EmbeddingProvider = "tei"
)

// EmbeddingConfig holds settings for the embedding provider.
type EmbeddingConfig struct {
	HTTPConfig `yaml:",inline"`

	// Provider selects the backend: openai or tei.
	Provider EmbeddingProvider `json:"provider" yaml:"provider"`

	// ServerURL is the provider base URL (e.g. "https://api.openai.com/v1").
	ServerURL string `json:"server_url" yaml:"server_url"`

	// Model is the embedding model identifier (e.g. "text-embedding-3-large").
	Model string `json:"model" yaml:"model"`

	// APIKey authenticates requests. Usually loaded from .secrets/.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Dimensions is the embedding vector length; it must match the target
	// collection schema.
	Dimensions int `json:"dimensions" yaml:"dimensions"`

	// BatchSize is the number of texts sent per embedding request (default 32).
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// DocPrefix is prepended to document texts before embedding (some models
	// such as E5 require "passage: ").
	DocPrefix string `json:"doc_prefix,omitempty" yaml:"doc_prefix,omitempty"`

	// QueryPrefix is prepended to query texts before embedding.
	QueryPrefix string `json:"query_prefix,omitempty" yaml:"query_prefix,omitempty"`
}

// IndexConfig holds vector index settings for a collection.
type IndexConfig struct {
	// IndexType is the Milvus index type (default "HNSW").
	IndexType string `json:"index_type" yaml:"index_type"`

	// MetricType is the similarity metric: "IP" (higher is better) or
	// "L2" (lower is better).
	MetricType string `json:"metric_type" yaml:"metric_type"`

	// HNSWM is the HNSW graph degree (default 32).
	HNSWM int `json:"hnsw_m" yaml:"hnsw_m"`

	// HNSWEfConstruction is the HNSW build-time search width (default 512).
	HNSWEfConstruction int `json:"hnsw_ef_construction" yaml:"hnsw_ef_construction"`
}

// CrawlConfig holds settings for the OpenAlex crawl stage.
type CrawlConfig struct {
	HTTPConfig `yaml:",inline"`

	// Email is sent as the mailto parameter for OpenAlex polite pool access.
	// Usually loaded from .secrets/openalex-email.
	Email string `json:"email,omitempty" yaml:"email,omitempty"`

	// PerPage is the OpenAlex page size (max 200, default 100).
	PerPage int `json:"per_page" yaml:"per_page"`

	// CheckpointEvery flushes crawled works to the staging store after this
	// many records (default 5000).
	CheckpointEvery int `json:"checkpoint_every" yaml:"checkpoint_every"`

	// StagingDir is the directory holding the staging SQLite database.
	StagingDir string `json:"staging_dir" yaml:"staging_dir"`
}

// SearchConfig holds settings for the query stage.
type SearchConfig struct {
	// TopK is the default number of vector hits requested per resource type
	// (default 100 for author search, 3 for resource search).
	TopK int `json:"top_k" yaml:"top_k"`

	// MaxRetries bounds backoff retries against Milvus per request.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// InstitutionConfig holds settings for the institution membership cache.
type InstitutionConfig struct {
	HTTPConfig `yaml:",inline"`

	// CacheTTL bounds how long a cached membership set is served before it is
	// recomputed (default 24h).
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl"`

	// Email is sent as the mailto parameter for OpenAlex polite pool access.
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
}

// ServerConfig holds settings for the HTTP API.
type ServerConfig struct {
	// Addr is the listen address (default ":8000").
	Addr string `json:"addr" yaml:"addr"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Milvus      MilvusConfig      `json:"milvus" yaml:"milvus"`
	Embedding   EmbeddingConfig   `json:"embedding" yaml:"embedding"`
	Index       IndexConfig       `json:"index" yaml:"index"`
	Crawl       CrawlConfig       `json:"crawl" yaml:"crawl"`
	Search      SearchConfig      `json:"search" yaml:"search"`
	Institution InstitutionConfig `json:"institution" yaml:"institution"`
	Server      ServerConfig      `json:"server" yaml:"server"`
}
