// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ranking

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/expert-engine/pkg/types"
)

func hit(id string, distance float64, authorIDs []string, fields map[string]any) types.SearchHit {
	entity := map[string]any{}
	for k, v := range fields {
		entity[k] = v
	}
	ids := make([]any, len(authorIDs))
	for i, a := range authorIDs {
		ids[i] = a
	}
	entity["author_ids"] = ids
	return types.SearchHit{ID: id, Distance: distance, Entity: entity}
}

func distanceConfig(t *testing.T, minDistance float64, nPerAuthor int) *ResourceScoringConfig {
	t.Helper()
	rc, err := NewRerankConfig(ResourceScoringConfig{
		Resource:       "work",
		Formula:        "distance",
		MinDistance:    minDistance,
		HigherIsBetter: true,
		NPerAuthor:     nPerAuthor,
	})
	require.NoError(t, err)
	cfg, err := rc.ScoringConfig("work")
	require.NoError(t, err)
	return cfg
}

// --- Flatten ---

func TestFlattenMultiAuthor(t *testing.T) {
	records, skipped := Flatten([]types.SearchHit{
		hit("w1", 0.9, []string{"A", "B"}, nil),
	})
	require.Equal(t, 0, skipped)
	require.Len(t, records, 2)

	assert.Equal(t, "A", records[0].AuthorID)
	assert.Equal(t, "B", records[1].AuthorID)
	assert.Equal(t, 0.9, records[0].Distance())
	assert.Equal(t, 0.9, records[1].Distance())

	// Records must not share state: mutating one leaves the other intact.
	records[0].Fields["distance"] = 0
	assert.Equal(t, 0.9, records[1].Distance())
}

func TestFlattenSkipsAuthorlessHits(t *testing.T) {
	records, skipped := Flatten([]types.SearchHit{
		hit("w1", 0.9, nil, nil),
		hit("w2", 0.8, []string{"A"}, nil),
	})
	assert.Equal(t, 1, skipped)
	require.Len(t, records, 1)
	assert.Equal(t, "A", records[0].AuthorID)
}

// --- ResourceScores ---

func TestResourceScoresTopNPerAuthor(t *testing.T) {
	cfg := distanceConfig(t, 0, 2)
	hits := []types.SearchHit{
		hit("w1", 5, []string{"A"}, nil),
		hit("w2", 3, []string{"A"}, nil),
		hit("w3", 1, []string{"A"}, nil),
	}

	scores, err := ResourceScores(hits, cfg, 2026, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, types.AuthorScores{"A": 8}, scores)
}

func TestResourceScoresThresholdIsStrict(t *testing.T) {
	cfg := distanceConfig(t, 0.5, 10)
	eps := 1e-9
	hits := []types.SearchHit{
		hit("w1", 0.5, []string{"A"}, nil),     // equal: excluded
		hit("w2", 0.5+eps, []string{"B"}, nil), // strictly above: included
	}

	scores, err := ResourceScores(hits, cfg, 2026, io.Discard)
	require.NoError(t, err)
	assert.NotContains(t, scores, "A")
	assert.Contains(t, scores, "B")
}

func TestResourceScoresLowerIsBetter(t *testing.T) {
	rc, err := NewRerankConfig(ResourceScoringConfig{
		Resource:       "work",
		Formula:        "1 - distance",
		MinDistance:    0.4,
		HigherIsBetter: false, // L2: smaller distance is better
		NPerAuthor:     10,
	})
	require.NoError(t, err)
	cfg, err := rc.ScoringConfig("work")
	require.NoError(t, err)

	scores, err := ResourceScores([]types.SearchHit{
		hit("w1", 0.1, []string{"A"}, nil),
		hit("w2", 0.4, []string{"B"}, nil), // equal: excluded
		hit("w3", 0.9, []string{"C"}, nil), // worse: excluded
	}, cfg, 2026, io.Discard)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, scores["A"], 1e-9)
	assert.NotContains(t, scores, "B")
	assert.NotContains(t, scores, "C")
}

func TestResourceScoresEmptyAfterFilter(t *testing.T) {
	cfg := distanceConfig(t, 0.9, 10)
	scores, err := ResourceScores([]types.SearchHit{
		hit("w1", 0.5, []string{"A"}, nil),
	}, cfg, 2026, io.Discard)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestResourceScoresUnknownFormulaField(t *testing.T) {
	rc, err := NewRerankConfig(ResourceScoringConfig{
		Resource:       "work",
		Formula:        "distance + h_index", // no record carries h_index
		MinDistance:    0,
		HigherIsBetter: true,
		NPerAuthor:     10,
	})
	require.NoError(t, err)
	cfg, err := rc.ScoringConfig("work")
	require.NoError(t, err)

	_, err = ResourceScores([]types.SearchHit{
		hit("w1", 0.9, []string{"A"}, nil),
	}, cfg, 2026, io.Discard)
	require.Error(t, err)

	var cfgErr *ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestResourceScoresExcludesNonFinite(t *testing.T) {
	rc, err := NewRerankConfig(ResourceScoringConfig{
		Resource:       "work",
		Formula:        "1 / (distance - 1) + 10",
		MinDistance:    0,
		HigherIsBetter: true,
		NPerAuthor:     1,
	})
	require.NoError(t, err)
	cfg, err := rc.ScoringConfig("work")
	require.NoError(t, err)

	var warnings strings.Builder
	scores, err := ResourceScores([]types.SearchHit{
		hit("w1", 1, []string{"A"}, nil),   // 1/(1-1) = +Inf: disqualified
		hit("w2", 0.5, []string{"A"}, nil), // finite
	}, cfg, 2026, &warnings)
	require.NoError(t, err)

	// The Inf record is excluded outright, so A's top-1 is the finite score.
	assert.InDelta(t, 1/(0.5-1)+10, scores["A"], 1e-9)
	assert.Contains(t, warnings.String(), "non-finite")
}

func TestResourceScoresMissingFieldCoercedToZero(t *testing.T) {
	rc, err := NewRerankConfig(ResourceScoringConfig{
		Resource:       "work",
		Formula:        "distance + cited_by_count",
		MinDistance:    0,
		HigherIsBetter: true,
		NPerAuthor:     10,
	})
	require.NoError(t, err)
	cfg, err := rc.ScoringConfig("work")
	require.NoError(t, err)

	var warnings strings.Builder
	scores, err := ResourceScores([]types.SearchHit{
		hit("w1", 0.5, []string{"A"}, map[string]any{"cited_by_count": float64(7)}),
		hit("w2", 0.25, []string{"B"}, nil), // lacks cited_by_count
	}, cfg, 2026, &warnings)
	require.NoError(t, err)

	assert.InDelta(t, 7.5, scores["A"], 1e-9)
	assert.InDelta(t, 0.25, scores["B"], 1e-9)
	assert.Contains(t, warnings.String(), "coerced to 0")
}

// --- RerankConfig ---

func TestNewRerankConfigRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name string
		cfgs []ResourceScoringConfig
	}{
		{"empty", nil},
		{"bad formula", []ResourceScoringConfig{{Resource: "work", Formula: "1 +", NPerAuthor: 1}}},
		{"disallowed function", []ResourceScoringConfig{{Resource: "work", Formula: "exp(distance)", NPerAuthor: 1}}},
		{"zero n_per_author", []ResourceScoringConfig{{Resource: "work", Formula: "distance", NPerAuthor: 0}}},
		{"duplicate resource", []ResourceScoringConfig{
			{Resource: "work", Formula: "distance", NPerAuthor: 1},
			{Resource: "work", Formula: "distance", NPerAuthor: 2},
		}},
		{"empty resource tag", []ResourceScoringConfig{{Formula: "distance", NPerAuthor: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRerankConfig(tt.cfgs...)
			require.Error(t, err)
			var cfgErr *ConfigError
			assert.True(t, errors.As(err, &cfgErr))
		})
	}
}

func TestScoringConfigUnknownResource(t *testing.T) {
	rc := DefaultRerankConfig()
	_, err := rc.ScoringConfig("grant")
	require.Error(t, err)
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "grant", cfgErr.Resource)
}

// --- Reranker ---

func newTestReranker(t *testing.T, cfgs ...ResourceScoringConfig) *Reranker {
	t.Helper()
	rc, err := NewRerankConfig(cfgs...)
	require.NoError(t, err)
	return NewReranker(rc).WithClock(func() time.Time {
		return time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	})
}

func TestRerankCrossResourceMerge(t *testing.T) {
	r := newTestReranker(t,
		ResourceScoringConfig{Resource: "work", Formula: "distance", MinDistance: 0, HigherIsBetter: true, NPerAuthor: 10},
		ResourceScoringConfig{Resource: "grant", Formula: "distance", MinDistance: 0, HigherIsBetter: true, NPerAuthor: 10},
	)

	ranked, err := r.Rerank(map[string][]types.SearchHit{
		"work":  {hit("w1", 10, []string{"A"}, nil)},
		"grant": {},
	}, io.Discard)
	require.NoError(t, err)
	require.Len(t, ranked, 1)

	assert.Equal(t, "A", ranked[0].AuthorID)
	assert.Equal(t, float64(10), ranked[0].Total)
	assert.Equal(t, map[string]float64{"work": 10, "grant": 0}, ranked[0].Scores)
}

func TestRerankTotalEqualsSumOfScores(t *testing.T) {
	r := newTestReranker(t,
		ResourceScoringConfig{Resource: "work", Formula: "distance", MinDistance: 0, HigherIsBetter: true, NPerAuthor: 10},
		ResourceScoringConfig{Resource: "grant", Formula: "distance * 2", MinDistance: 0, HigherIsBetter: true, NPerAuthor: 10},
	)

	ranked, err := r.Rerank(map[string][]types.SearchHit{
		"work":  {hit("w1", 3, []string{"A"}, nil)},
		"grant": {hit("g1", 4, []string{"A"}, nil)},
	}, io.Discard)
	require.NoError(t, err)
	require.Len(t, ranked, 1)

	var sum float64
	for _, s := range ranked[0].Scores {
		sum += s
	}
	assert.Equal(t, sum, ranked[0].Total)
	assert.Equal(t, float64(11), ranked[0].Total)
}

func TestRerankUnregisteredResourceIsConfigError(t *testing.T) {
	r := newTestReranker(t,
		ResourceScoringConfig{Resource: "work", Formula: "distance", MinDistance: 0, HigherIsBetter: true, NPerAuthor: 10},
	)

	_, err := r.Rerank(map[string][]types.SearchHit{
		"patent": {hit("p1", 1, []string{"A"}, nil)},
	}, io.Discard)
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "patent", cfgErr.Resource)
}

func TestRerankDeterministicTieBreak(t *testing.T) {
	r := newTestReranker(t,
		ResourceScoringConfig{Resource: "work", Formula: "distance", MinDistance: 0, HigherIsBetter: true, NPerAuthor: 10},
	)

	hitSets := map[string][]types.SearchHit{
		"work": {hit("w1", 5, []string{"C", "A", "B"}, nil)},
	}

	first, err := r.Rerank(hitSets, io.Discard)
	require.NoError(t, err)
	second, err := r.Rerank(hitSets, io.Discard)
	require.NoError(t, err)

	// Equal totals sort by ascending author_id, and reruns are identical.
	require.Len(t, first, 3)
	assert.Equal(t, "A", first[0].AuthorID)
	assert.Equal(t, "B", first[1].AuthorID)
	assert.Equal(t, "C", first[2].AuthorID)
	assert.Equal(t, first, second)
}

func TestRerankEndToEndScenario(t *testing.T) {
	r := newTestReranker(t,
		ResourceScoringConfig{Resource: "work", Formula: "distance", MinDistance: 0.5, HigherIsBetter: true, NPerAuthor: 1},
	)

	ranked, err := r.Rerank(map[string][]types.SearchHit{
		"work": {
			hit("w1", 0.9, []string{"A"}, nil),
			hit("w2", 0.6, []string{"A", "B"}, nil),
		},
	}, io.Discard)
	require.NoError(t, err)
	require.Len(t, ranked, 2)

	// A's top-1 is 0.9; its 0.6 record is ignored because NPerAuthor=1.
	assert.Equal(t, "A", ranked[0].AuthorID)
	assert.InDelta(t, 0.9, ranked[0].Total, 1e-9)
	assert.Equal(t, "B", ranked[1].AuthorID)
	assert.InDelta(t, 0.6, ranked[1].Total, 1e-9)
}

func TestRerankNoHitsAnywhere(t *testing.T) {
	r := newTestReranker(t,
		ResourceScoringConfig{Resource: "work", Formula: "distance", MinDistance: 0.5, HigherIsBetter: true, NPerAuthor: 1},
	)
	ranked, err := r.Rerank(map[string][]types.SearchHit{"work": {}}, io.Discard)
	require.NoError(t, err)
	assert.Empty(t, ranked)
}
