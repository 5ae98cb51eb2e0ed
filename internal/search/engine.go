// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search orchestrates a query end to end: embed the query text once,
// fan out one vector search per registered resource type, rank the hits per
// author, and optionally filter by institution membership. A resource type
// that fails after retries degrades the result instead of aborting it.
package search

import (
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/expert-engine/internal/institution"
	"github.com/pdiddy/expert-engine/internal/ranking"
	"github.com/pdiddy/expert-engine/pkg/types"
)

// QueryEmbedder embeds a query string into the collection's vector space.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// VectorSearcher runs a vector similarity search against one collection.
type VectorSearcher interface {
	Search(ctx context.Context, collection string, vector []float32, topK int, filter string, outputFields []string) ([]types.SearchHit, error)
}

// Options are the per-request knobs shared by resource and author search.
type Options struct {
	// TopK overrides the engine default number of hits per resource type.
	TopK int

	// SinceYear drops records published before the given year. Zero disables.
	SinceYear int

	// AuthorID scopes the search to records authored by the given author.
	AuthorID string

	// MinDistance overrides every resource's configured score threshold for
	// this request. Nil keeps the configured thresholds.
	MinDistance *float64

	// Institutions restricts ranked authors to members of these OpenAlex
	// institutions. Empty disables the filter.
	Institutions []string
}

// AuthorsResult is the outcome of an author search.
type AuthorsResult struct {
	// Authors is the final ranking, best first.
	Authors []types.RankedAuthor

	// MemberCounts reports the membership size per requested institution,
	// present only when an institution filter was applied. A zero count
	// flags a likely misconfigured institution id.
	MemberCounts map[string]int

	// Failed maps resource types that errored after retries to the error
	// message. Their contribution to the ranking is zero.
	Failed map[string]string
}

// Engine wires the embedding provider, the vector database, the ranking
// pipeline, and the institution filter behind the two search operations.
type Engine struct {
	embedder  QueryEmbedder
	db        VectorSearcher
	reranker  *ranking.Reranker
	filter    *institution.Filter
	resources map[string]Resource
	order     []string
	topK      int
}

// NewEngine validates the resource registry against the scoring configs and
// returns a ready engine. Every registered resource type needs a scoring
// config and vice versa, and every formula may only reference fields the
// resource's search returns. filter may be nil when institution filtering is
// not configured.
func NewEngine(embedder QueryEmbedder, db VectorSearcher, cfg ranking.RerankConfig, filter *institution.Filter, resources []Resource, topK int) (*Engine, error) {
	if topK <= 0 {
		topK = 100
	}
	e := &Engine{
		embedder:  embedder,
		db:        db,
		reranker:  ranking.NewReranker(cfg),
		filter:    filter,
		resources: make(map[string]Resource, len(resources)),
		topK:      topK,
	}

	for _, r := range resources {
		if r.Name == "" || r.Collection == "" {
			return nil, fmt.Errorf("resource registry entry needs a name and a collection, got %+v", r)
		}
		if _, dup := e.resources[r.Name]; dup {
			return nil, fmt.Errorf("duplicate resource registry entry %q", r.Name)
		}
		sc, err := cfg.ScoringConfig(r.Name)
		if err != nil {
			return nil, err
		}
		if err := r.validateFields(sc.FormulaIdentifiers()); err != nil {
			return nil, &ranking.ConfigError{Resource: r.Name, Err: err}
		}
		e.resources[r.Name] = r
		e.order = append(e.order, r.Name)
	}

	for _, tag := range cfg.Resources() {
		if _, ok := e.resources[tag]; !ok {
			return nil, &ranking.ConfigError{Resource: tag, Err: fmt.Errorf("scoring config has no resource registry entry")}
		}
	}
	if len(e.order) == 0 {
		return nil, fmt.Errorf("no resource types registered")
	}
	return e, nil
}

// Resources returns the registered resource type tags in registration order.
func (e *Engine) Resources() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// SearchResource embeds the query and returns the raw hits for one resource
// type, in the similarity order the vector database produced.
func (e *Engine) SearchResource(ctx context.Context, resource, query string, opts Options) ([]types.SearchHit, error) {
	r, ok := e.resources[resource]
	if !ok {
		return nil, &ranking.ConfigError{Resource: resource, Err: fmt.Errorf("unknown resource type")}
	}

	vec, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := e.db.Search(ctx, r.Collection, vec, e.effectiveTopK(opts), r.filterExpr(opts), r.OutputFields)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", r.Collection, err)
	}
	return hits, nil
}

// SearchAuthors embeds the query once, searches every registered resource
// type concurrently, and returns the ranked authors. A resource type whose
// search fails after retries is reported in Failed and contributes nothing;
// the request only errors when every resource type failed, the query could
// not be embedded, or the configuration is invalid.
func (e *Engine) SearchAuthors(ctx context.Context, query string, opts Options, w io.Writer) (AuthorsResult, error) {
	vec, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return AuthorsResult{}, fmt.Errorf("embedding query: %w", err)
	}

	topK := e.effectiveTopK(opts)
	hitSets := make(map[string][]types.SearchHit, len(e.order))
	failed := make(map[string]string)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range e.order {
		r := e.resources[name]
		g.Go(func() error {
			hits, err := e.db.Search(gctx, r.Collection, vec, topK, r.filterExpr(opts), r.OutputFields)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[r.Name] = err.Error()
				fmt.Fprintf(w, "warning: resource %s search failed: %v\n", r.Name, err)
				return nil
			}
			hitSets[r.Name] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return AuthorsResult{}, err
	}
	if len(failed) == len(e.order) {
		return AuthorsResult{Failed: failed}, fmt.Errorf("all %d resource searches failed", len(e.order))
	}

	reranker := e.reranker
	if opts.MinDistance != nil {
		reranker = ranking.NewReranker(e.reranker.Config().WithMinDistance(*opts.MinDistance))
	}
	ranked, err := reranker.Rerank(hitSets, w)
	if err != nil {
		return AuthorsResult{Failed: failed}, err
	}

	result := AuthorsResult{Authors: ranked, Failed: failed}
	if e.filter != nil && len(opts.Institutions) > 0 {
		fr, err := e.filter.Apply(ctx, ranked, opts.Institutions)
		if err != nil {
			return result, fmt.Errorf("filtering by institution: %w", err)
		}
		result.Authors = fr.Authors
		result.MemberCounts = fr.MemberCounts
	}
	return result, nil
}

func (e *Engine) effectiveTopK(opts Options) int {
	if opts.TopK > 0 {
		return opts.TopK
	}
	return e.topK
}
