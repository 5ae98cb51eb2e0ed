// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ranking

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/pdiddy/expert-engine/pkg/types"
)

// ResourceScores computes the per-author score map for one resource type:
// flatten, threshold filter, formula evaluation, then per-author top-N sum.
// The result keys are exactly the authors with at least one surviving,
// finitely-scored record. Scores are deterministic given identical hit order.
// Data-quality warnings (unattributable hits, missing-field coercions,
// non-finite scores) are written to w; they never abort scoring.
func ResourceScores(hits []types.SearchHit, cfg *ResourceScoringConfig, currentYear int, w io.Writer) (types.AuthorScores, error) {
	if len(hits) == 0 {
		return types.AuthorScores{}, nil
	}

	records, skipped := Flatten(hits)
	if skipped > 0 {
		fmt.Fprintf(w, "warning: %s: %d hit(s) without author_ids skipped\n", cfg.Resource, skipped)
	}

	var surviving []types.FlattenedRecord
	for _, r := range records {
		if cfg.passes(r.Distance()) {
			surviving = append(surviving, r)
		}
	}
	if len(surviving) == 0 {
		return types.AuthorScores{}, nil
	}

	scores, err := evaluate(surviving, cfg, currentYear, w)
	if err != nil {
		return nil, err
	}

	// Group scores by author, preserving record order within each group.
	byAuthor := make(map[string][]float64)
	for i, r := range surviving {
		if math.IsNaN(scores[i]) || math.IsInf(scores[i], 0) {
			// Disqualified, not zero: a non-finite score must not count as a
			// cheap slot in the author's top-N.
			fmt.Fprintf(w, "warning: %s: non-finite score for author %s excluded\n", cfg.Resource, r.AuthorID)
			continue
		}
		byAuthor[r.AuthorID] = append(byAuthor[r.AuthorID], scores[i])
	}

	out := make(types.AuthorScores, len(byAuthor))
	for authorID, authorScores := range byAuthor {
		out[authorID] = sumTopN(authorScores, cfg.NPerAuthor)
	}
	return out, nil
}

// evaluate runs the scoring formula over the surviving records. It builds one
// column per numeric field present anywhere in the record set, coercing
// missing values to 0 (reported to w, not silent).
func evaluate(records []types.FlattenedRecord, cfg *ResourceScoringConfig, currentYear int, w io.Writer) ([]float64, error) {
	fieldNames := make(map[string]struct{})
	for _, r := range records {
		for name := range r.Fields {
			fieldNames[name] = struct{}{}
		}
	}

	columns := make(map[string][]float64, len(fieldNames))
	coerced := 0
	for name := range fieldNames {
		col := make([]float64, len(records))
		for i, r := range records {
			v, ok := r.Fields[name]
			if !ok {
				coerced++
			}
			col[i] = v // zero value stands in for a missing field
		}
		columns[name] = col
	}
	if coerced > 0 {
		fmt.Fprintf(w, "warning: %s: %d missing field value(s) coerced to 0\n", cfg.Resource, coerced)
	}

	consts := map[string]float64{"current_year": float64(currentYear)}
	scores, err := cfg.expr.Eval(columns, consts, len(records))
	if err != nil {
		return nil, &ConfigError{Resource: cfg.Resource, Err: err}
	}
	return scores, nil
}

// sumTopN returns the sum of the min(n, len) highest scores. Sorting is
// stable, so equal scores keep their original record order.
func sumTopN(scores []float64, n int) float64 {
	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })

	if n > len(sorted) {
		n = len(sorted)
	}
	var total float64
	for _, s := range sorted[:n] {
		total += s
	}
	return total
}
