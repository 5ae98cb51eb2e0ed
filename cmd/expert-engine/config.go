// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/expert-engine/internal/embedding"
	"github.com/pdiddy/expert-engine/internal/institution"
	"github.com/pdiddy/expert-engine/internal/ranking"
	"github.com/pdiddy/expert-engine/internal/search"
	"github.com/pdiddy/expert-engine/internal/vectordb"
	"github.com/pdiddy/expert-engine/pkg/types"
)

const userAgent = "expert-engine/0.1"

// pipelineConfig assembles the stage configs from the config file, with
// secrets filling credentials the file leaves empty.
func pipelineConfig() types.PipelineConfig {
	viper.SetDefault("milvus.base_url", "http://localhost:19530")
	viper.SetDefault("milvus.db_name", "default")
	viper.SetDefault("milvus.timeout", "30s")
	viper.SetDefault("embedding.provider", "openai")
	viper.SetDefault("embedding.server_url", "https://api.openai.com/v1")
	viper.SetDefault("embedding.model", "text-embedding-3-large")
	viper.SetDefault("embedding.dimensions", 256)
	viper.SetDefault("embedding.batch_size", 32)
	viper.SetDefault("embedding.timeout", "60s")
	viper.SetDefault("index.index_type", "HNSW")
	viper.SetDefault("index.metric_type", "IP")
	viper.SetDefault("index.hnsw_m", 32)
	viper.SetDefault("index.hnsw_ef_construction", 512)
	viper.SetDefault("crawl.per_page", 100)
	viper.SetDefault("crawl.checkpoint_every", 5000)
	viper.SetDefault("crawl.staging_dir", "staging")
	viper.SetDefault("crawl.timeout", "60s")
	viper.SetDefault("search.top_k", 100)
	viper.SetDefault("search.max_retries", 3)
	viper.SetDefault("institution.cache_ttl", "24h")
	viper.SetDefault("institution.timeout", "60s")
	viper.SetDefault("server.addr", ":8000")

	teiKey := secretDefault("tei-api-key", "")
	embedKey := secretDefault("openai-api-key", "")
	if viper.GetString("embedding.provider") == string(types.ProviderTEI) && teiKey != "" {
		embedKey = teiKey
	}

	return types.PipelineConfig{
		Milvus: types.MilvusConfig{
			HTTPConfig: types.HTTPConfig{Timeout: viper.GetDuration("milvus.timeout"), UserAgent: userAgent},
			BaseURL:    viper.GetString("milvus.base_url"),
			Token:      secretDefault("milvus-token", viper.GetString("milvus.token")),
			DBName:     viper.GetString("milvus.db_name"),
		},
		Embedding: types.EmbeddingConfig{
			HTTPConfig:  types.HTTPConfig{Timeout: viper.GetDuration("embedding.timeout"), UserAgent: userAgent},
			Provider:    types.EmbeddingProvider(viper.GetString("embedding.provider")),
			ServerURL:   viper.GetString("embedding.server_url"),
			Model:       viper.GetString("embedding.model"),
			APIKey:      embedKey,
			Dimensions:  viper.GetInt("embedding.dimensions"),
			BatchSize:   viper.GetInt("embedding.batch_size"),
			DocPrefix:   viper.GetString("embedding.doc_prefix"),
			QueryPrefix: viper.GetString("embedding.query_prefix"),
		},
		Index: types.IndexConfig{
			IndexType:          viper.GetString("index.index_type"),
			MetricType:         viper.GetString("index.metric_type"),
			HNSWM:              viper.GetInt("index.hnsw_m"),
			HNSWEfConstruction: viper.GetInt("index.hnsw_ef_construction"),
		},
		Crawl: types.CrawlConfig{
			HTTPConfig:      types.HTTPConfig{Timeout: viper.GetDuration("crawl.timeout"), UserAgent: userAgent},
			Email:           secretDefault("openalex-email", viper.GetString("crawl.email")),
			PerPage:         viper.GetInt("crawl.per_page"),
			CheckpointEvery: viper.GetInt("crawl.checkpoint_every"),
			StagingDir:      viper.GetString("crawl.staging_dir"),
		},
		Search: types.SearchConfig{
			TopK:       viper.GetInt("search.top_k"),
			MaxRetries: viper.GetInt("search.max_retries"),
		},
		Institution: types.InstitutionConfig{
			HTTPConfig: types.HTTPConfig{Timeout: viper.GetDuration("institution.timeout"), UserAgent: userAgent},
			CacheTTL:   viper.GetDuration("institution.cache_ttl"),
			Email:      secretDefault("openalex-email", viper.GetString("institution.email")),
		},
		Server: types.ServerConfig{
			Addr: viper.GetString("server.addr"),
		},
	}
}

// rerankConfig builds the scoring configuration, applying any ranking
// overrides from the config file on top of the shipped defaults.
func rerankConfig() (ranking.RerankConfig, error) {
	base := ranking.ResourceScoringConfig{
		Resource:       "work",
		Formula:        ranking.DefaultWorkFormula,
		MinDistance:    0.8,
		HigherIsBetter: true,
		NPerAuthor:     10,
	}
	if f := viper.GetString("ranking.formula"); f != "" {
		base.Formula = f
	}
	if viper.IsSet("ranking.min_distance") {
		base.MinDistance = viper.GetFloat64("ranking.min_distance")
	}
	if n := viper.GetInt("ranking.n_per_author"); n > 0 {
		base.NPerAuthor = n
	}
	if viper.IsSet("ranking.higher_is_better") {
		base.HigherIsBetter = viper.GetBool("ranking.higher_is_better")
	}
	return ranking.NewRerankConfig(base)
}

// newEngine wires the embedding provider, Milvus client, ranking config, and
// institution filter into a search engine.
func newEngine(cfg types.PipelineConfig) (*search.Engine, error) {
	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, err
	}

	db := vectordb.NewClient(cfg.Milvus, cfg.Search.MaxRetries)

	rc, err := rerankConfig()
	if err != nil {
		return nil, fmt.Errorf("building ranking config: %w", err)
	}

	ttl := cfg.Institution.CacheTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	source := &institution.OpenAlexSource{
		Client:    &http.Client{Timeout: cfg.Institution.Timeout},
		Email:     cfg.Institution.Email,
		UserAgent: cfg.Institution.UserAgent,
	}
	filter := institution.NewFilter(institution.NewCache(source, ttl))

	return search.NewEngine(embedder, db, rc, filter, []search.Resource{search.WorkResource()}, cfg.Search.TopK)
}
