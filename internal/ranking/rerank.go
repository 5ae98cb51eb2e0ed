// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ranking

import (
	"io"
	"sort"
	"time"

	"github.com/pdiddy/expert-engine/pkg/types"
)

// Reranker merges per-resource-type hit sets into a single ranked author
// list. It is a pure function of its inputs and config; reranking identical
// inputs twice yields identical output, including tie order.
type Reranker struct {
	cfg RerankConfig

	// now is injectable so tests can pin current_year.
	now func() time.Time
}

// NewReranker builds a Reranker over a validated config.
func NewReranker(cfg RerankConfig) *Reranker {
	return &Reranker{cfg: cfg, now: time.Now}
}

// WithClock overrides the wall clock used for the current_year constant.
func (r *Reranker) WithClock(now func() time.Time) *Reranker {
	r.now = now
	return r
}

// Config returns the reranker's scoring configuration.
func (r *Reranker) Config() RerankConfig { return r.cfg }

// Rerank scores each resource type's hits and merges them into one sorted
// author list. Every registered resource type is scored; resource types
// absent from hitSets contribute nothing but still appear (as 0) in each
// author's score breakdown. A hit set for an unregistered resource type is a
// ConfigError. Warnings go to w.
func (r *Reranker) Rerank(hitSets map[string][]types.SearchHit, w io.Writer) ([]types.RankedAuthor, error) {
	for resource := range hitSets {
		if _, err := r.cfg.ScoringConfig(resource); err != nil {
			return nil, err
		}
	}

	currentYear := r.now().Year()
	resourceScores := make(map[string]types.AuthorScores, len(r.cfg.order))
	for _, resource := range r.cfg.Resources() {
		cfg, err := r.cfg.ScoringConfig(resource)
		if err != nil {
			return nil, err
		}
		scores, err := ResourceScores(hitSets[resource], cfg, currentYear, w)
		if err != nil {
			return nil, err
		}
		resourceScores[resource] = scores
	}

	return groupByAuthor(resourceScores), nil
}

// groupByAuthor merges per-resource score maps into RankedAuthors. The
// candidate universe is the union of all score keys; a missing per-resource
// score defaults to 0 and the breakdown lists every resource type. Output is
// sorted by total descending, ties broken by ascending author_id so the order
// is a total order independent of map iteration.
func groupByAuthor(resourceScores map[string]types.AuthorScores) []types.RankedAuthor {
	authorIDs := make(map[string]struct{})
	for _, scores := range resourceScores {
		for authorID := range scores {
			authorIDs[authorID] = struct{}{}
		}
	}

	ranked := make([]types.RankedAuthor, 0, len(authorIDs))
	for authorID := range authorIDs {
		ra := types.RankedAuthor{
			AuthorID: authorID,
			Scores:   make(map[string]float64, len(resourceScores)),
		}
		for resource, scores := range resourceScores {
			s := scores[authorID]
			ra.Scores[resource] = s
			ra.Total += s
		}
		ranked = append(ranked, ra)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Total != ranked[j].Total {
			return ranked[i].Total > ranked[j].Total
		}
		return ranked[i].AuthorID < ranked[j].AuthorID
	})
	return ranked
}
