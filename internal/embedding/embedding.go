// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package embedding turns text into vectors via an external provider. Two
// providers are supported: any OpenAI-compatible /embeddings endpoint and
// Hugging Face Text Embeddings Inference (TEI). The engine treats the
// returned vectors as opaque fixed-length float arrays whose dimensionality
// must match the target collection.
package embedding

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pdiddy/expert-engine/pkg/types"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// EmbedQuery embeds a search query (providers may apply a query prefix).
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// EmbedDocuments embeds document texts for indexing, batched per the
	// provider config. Output order matches input order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// New builds an Embedder from config.
func New(cfg types.EmbeddingConfig) (Embedder, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	client := &http.Client{Timeout: cfg.Timeout}
	switch cfg.Provider {
	case types.ProviderOpenAI, "":
		return &OpenAIClient{cfg: cfg, client: client}, nil
	case types.ProviderTEI:
		return &TEIClient{cfg: cfg, client: client}, nil
	}
	return nil, fmt.Errorf("unknown embedding provider %q: use openai or tei", cfg.Provider)
}

// batches splits texts into provider-sized chunks.
func batches(texts []string, size int) [][]string {
	var out [][]string
	for len(texts) > size {
		out = append(out, texts[:size])
		texts = texts[size:]
	}
	if len(texts) > 0 {
		out = append(out, texts)
	}
	return out
}

// withPrefix prepends prefix to every text, allocating only when needed.
func withPrefix(prefix string, texts []string) []string {
	if prefix == "" {
		return texts
	}
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = prefix + t
	}
	return out
}
