// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/expert-engine/internal/institution"
	"github.com/pdiddy/expert-engine/internal/ranking"
	"github.com/pdiddy/expert-engine/pkg/types"
)

type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	f.calls++
	return f.vec, f.err
}

type fakeDB struct {
	mu      sync.Mutex
	hits    map[string][]types.SearchHit // by collection
	errs    map[string]error
	filters map[string]string // collection → last filter expression
	topK    int
}

func (f *fakeDB) Search(ctx context.Context, collection string, vector []float32, topK int, filter string, outputFields []string) ([]types.SearchHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.filters == nil {
		f.filters = make(map[string]string)
	}
	f.filters[collection] = filter
	f.topK = topK
	if err := f.errs[collection]; err != nil {
		return nil, err
	}
	return f.hits[collection], nil
}

type fakeMembers struct {
	members map[string]map[string]struct{}
}

func (f *fakeMembers) ListAuthorIDs(ctx context.Context, institutionID string) (map[string]struct{}, error) {
	return f.members[institutionID], nil
}

func hit(distance float64, authors ...string) types.SearchHit {
	return types.SearchHit{
		Distance: distance,
		Entity:   map[string]any{"author_ids": authors},
	}
}

func distanceConfig(t *testing.T, resource string, min float64) ranking.RerankConfig {
	t.Helper()
	cfg, err := ranking.NewRerankConfig(ranking.ResourceScoringConfig{
		Resource:       resource,
		Formula:        "distance",
		MinDistance:    min,
		HigherIsBetter: true,
		NPerAuthor:     10,
	})
	require.NoError(t, err)
	return cfg
}

func workOnlyEngine(t *testing.T, db *fakeDB, min float64) *Engine {
	t.Helper()
	e, err := NewEngine(&fakeEmbedder{vec: []float32{1, 0}}, db,
		distanceConfig(t, "work", min), nil, []Resource{WorkResource()}, 100)
	require.NoError(t, err)
	return e
}

func TestNewEngineValidation(t *testing.T) {
	db := &fakeDB{}
	emb := &fakeEmbedder{}
	workCfg := distanceConfig(t, "work", 0.5)

	t.Run("resource without scoring config", func(t *testing.T) {
		_, err := NewEngine(emb, db, workCfg, nil,
			[]Resource{WorkResource(), {Name: "grant", Collection: "grants"}}, 100)
		var ce *ranking.ConfigError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "grant", ce.Resource)
	})

	t.Run("scoring config without resource", func(t *testing.T) {
		_, err := NewEngine(emb, db, workCfg, nil, []Resource{}, 100)
		require.Error(t, err)
	})

	t.Run("duplicate resource entry", func(t *testing.T) {
		_, err := NewEngine(emb, db, workCfg, nil,
			[]Resource{WorkResource(), WorkResource()}, 100)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate")
	})

	t.Run("formula references unknown field", func(t *testing.T) {
		cfg, err := ranking.NewRerankConfig(ranking.ResourceScoringConfig{
			Resource:       "work",
			Formula:        "distance + h_index",
			MinDistance:    0.5,
			HigherIsBetter: true,
			NPerAuthor:     10,
		})
		require.NoError(t, err)

		_, err = NewEngine(emb, db, cfg, nil, []Resource{WorkResource()}, 100)
		var ce *ranking.ConfigError
		require.ErrorAs(t, err, &ce)
		assert.Contains(t, err.Error(), "h_index")
	})

	t.Run("default config validates against work resource", func(t *testing.T) {
		_, err := NewEngine(emb, db, ranking.DefaultRerankConfig(), nil,
			[]Resource{WorkResource()}, 100)
		require.NoError(t, err)
	})
}

func TestFilterExpr(t *testing.T) {
	r := WorkResource()

	assert.Equal(t, "ignore == false", r.filterExpr(Options{}))
	assert.Equal(t, "ignore == false and publication_year >= 2020",
		r.filterExpr(Options{SinceYear: 2020}))
	assert.Equal(t, `ignore == false and ARRAY_CONTAINS(author_ids, "a42")`,
		r.filterExpr(Options{AuthorID: "a42"}))
	assert.Equal(t, `ignore == false and publication_year >= 2020 and ARRAY_CONTAINS(author_ids, "a42")`,
		r.filterExpr(Options{SinceYear: 2020, AuthorID: "a42"}))

	// No year field registered means since-year is not expressible.
	noYear := Resource{Name: "grant", Collection: "grants"}
	assert.Equal(t, "ignore == false", noYear.filterExpr(Options{SinceYear: 2020}))
}

func TestSearchResource(t *testing.T) {
	db := &fakeDB{hits: map[string][]types.SearchHit{
		"works": {hit(0.9, "a1"), hit(0.7, "a2")},
	}}
	e := workOnlyEngine(t, db, 0.5)

	hits, err := e.SearchResource(context.Background(), "work", "graph neural networks",
		Options{TopK: 3, SinceYear: 2019})
	require.NoError(t, err)

	require.Len(t, hits, 2)
	assert.Equal(t, 0.9, hits[0].Distance)
	assert.Equal(t, 3, db.topK)
	assert.Equal(t, "ignore == false and publication_year >= 2019", db.filters["works"])
}

func TestSearchResourceUnknownType(t *testing.T) {
	e := workOnlyEngine(t, &fakeDB{}, 0.5)

	_, err := e.SearchResource(context.Background(), "patent", "q", Options{})
	var ce *ranking.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "patent", ce.Resource)
}

func TestSearchAuthorsRanksByScore(t *testing.T) {
	db := &fakeDB{hits: map[string][]types.SearchHit{
		"works": {hit(0.9, "a1"), hit(0.6, "a2"), hit(0.85, "a1")},
	}}
	e := workOnlyEngine(t, db, 0.5)

	var buf bytes.Buffer
	result, err := e.SearchAuthors(context.Background(), "q", Options{}, &buf)
	require.NoError(t, err)

	require.Len(t, result.Authors, 2)
	assert.Equal(t, "a1", result.Authors[0].AuthorID)
	assert.InDelta(t, 1.75, result.Authors[0].Total, 1e-9)
	assert.Equal(t, "a2", result.Authors[1].AuthorID)
	assert.Empty(t, result.Failed)
	assert.Equal(t, 100, db.topK)
}

func TestSearchAuthorsEmbedsOnce(t *testing.T) {
	emb := &fakeEmbedder{vec: []float32{1}}
	cfg, err := ranking.NewRerankConfig(
		ranking.ResourceScoringConfig{Resource: "work", Formula: "distance", MinDistance: 0, HigherIsBetter: true, NPerAuthor: 10},
		ranking.ResourceScoringConfig{Resource: "grant", Formula: "distance", MinDistance: 0, HigherIsBetter: true, NPerAuthor: 10},
	)
	require.NoError(t, err)

	e, err := NewEngine(emb, &fakeDB{}, cfg, nil, []Resource{
		WorkResource(),
		{Name: "grant", Collection: "grants", OutputFields: []string{"author_ids"}},
	}, 100)
	require.NoError(t, err)

	_, err = e.SearchAuthors(context.Background(), "q", Options{}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 1, emb.calls)
}

func TestSearchAuthorsPartialResult(t *testing.T) {
	cfg, err := ranking.NewRerankConfig(
		ranking.ResourceScoringConfig{Resource: "work", Formula: "distance", MinDistance: 0.5, HigherIsBetter: true, NPerAuthor: 10},
		ranking.ResourceScoringConfig{Resource: "grant", Formula: "distance", MinDistance: 0.5, HigherIsBetter: true, NPerAuthor: 10},
	)
	require.NoError(t, err)

	db := &fakeDB{
		hits: map[string][]types.SearchHit{"works": {hit(0.9, "a1")}},
		errs: map[string]error{"grants": errors.New("collection not loaded")},
	}
	e, err := NewEngine(&fakeEmbedder{vec: []float32{1}}, db, cfg, nil, []Resource{
		WorkResource(),
		{Name: "grant", Collection: "grants", OutputFields: []string{"author_ids"}},
	}, 100)
	require.NoError(t, err)

	var buf bytes.Buffer
	result, err := e.SearchAuthors(context.Background(), "q", Options{}, &buf)
	require.NoError(t, err)

	require.Len(t, result.Authors, 1)
	assert.Equal(t, "a1", result.Authors[0].AuthorID)
	assert.Contains(t, result.Failed, "grant")
	assert.Contains(t, result.Failed["grant"], "collection not loaded")
	assert.Contains(t, buf.String(), "warning: resource grant search failed")

	// The failed resource still appears as a zero score.
	assert.Equal(t, 0.0, result.Authors[0].Scores["grant"])
}

func TestSearchAuthorsAllFailed(t *testing.T) {
	db := &fakeDB{errs: map[string]error{"works": errors.New("milvus down")}}
	e := workOnlyEngine(t, db, 0.5)

	result, err := e.SearchAuthors(context.Background(), "q", Options{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 1 resource searches failed")
	assert.Contains(t, result.Failed, "work")
}

func TestSearchAuthorsEmbedError(t *testing.T) {
	emb := &fakeEmbedder{err: errors.New("model overloaded")}
	e, err := NewEngine(emb, &fakeDB{}, distanceConfig(t, "work", 0.5), nil,
		[]Resource{WorkResource()}, 100)
	require.NoError(t, err)

	_, err = e.SearchAuthors(context.Background(), "q", Options{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding query")
}

func TestSearchAuthorsMinDistanceOverride(t *testing.T) {
	db := &fakeDB{hits: map[string][]types.SearchHit{
		"works": {hit(0.9, "a1"), hit(0.6, "a2")},
	}}
	e := workOnlyEngine(t, db, 0.5)

	min := 0.7
	result, err := e.SearchAuthors(context.Background(), "q", Options{MinDistance: &min}, &bytes.Buffer{})
	require.NoError(t, err)

	require.Len(t, result.Authors, 1)
	assert.Equal(t, "a1", result.Authors[0].AuthorID)
}

func TestSearchAuthorsInstitutionFilter(t *testing.T) {
	db := &fakeDB{hits: map[string][]types.SearchHit{
		"works": {hit(0.9, "a1"), hit(0.8, "a2"), hit(0.7, "a3")},
	}}
	src := &fakeMembers{members: map[string]map[string]struct{}{
		"i1": {"a1": {}, "a3": {}},
	}}
	filter := institution.NewFilter(institution.NewCache(src, time.Hour))

	e, err := NewEngine(&fakeEmbedder{vec: []float32{1}}, db,
		distanceConfig(t, "work", 0.5), filter, []Resource{WorkResource()}, 100)
	require.NoError(t, err)

	result, err := e.SearchAuthors(context.Background(), "q",
		Options{Institutions: []string{"i1"}}, &bytes.Buffer{})
	require.NoError(t, err)

	require.Len(t, result.Authors, 2)
	assert.Equal(t, "a1", result.Authors[0].AuthorID)
	assert.Equal(t, "a3", result.Authors[1].AuthorID)
	assert.Equal(t, map[string]int{"i1": 2}, result.MemberCounts)
}

func TestFormatAuthorsTable(t *testing.T) {
	result := AuthorsResult{Authors: []types.RankedAuthor{
		{AuthorID: "a1", Total: 1.75, Scores: map[string]float64{"work": 1.75}},
		{AuthorID: "a2", Total: 0.60, Scores: map[string]float64{"work": 0.60}},
	}}

	var buf bytes.Buffer
	FormatAuthorsTable(result, &buf)
	out := buf.String()

	assert.Contains(t, out, "a1")
	assert.Contains(t, out, "a2")
	assert.Contains(t, out, "2 authors")

	var empty bytes.Buffer
	FormatAuthorsTable(AuthorsResult{}, &empty)
	assert.Contains(t, empty.String(), "No authors found.")
}

func TestFormatHitsTable(t *testing.T) {
	hits := []types.SearchHit{{
		ID:       "w1",
		Distance: 0.91,
		Entity: map[string]any{
			"title":            "Deep learning for protein folding",
			"publication_year": float64(2021),
			"cited_by_count":   float64(340),
		},
	}}

	var buf bytes.Buffer
	FormatHitsTable(hits, &buf)
	out := buf.String()

	assert.Contains(t, out, "Deep learning for protein folding")
	assert.Contains(t, out, "2021")
	assert.Contains(t, out, "340")
	assert.Contains(t, out, "1 results")
}
