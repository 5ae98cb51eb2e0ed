// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package institution

import (
	"context"

	"github.com/pdiddy/expert-engine/pkg/types"
)

// FilterResult is the outcome of an institution filter pass. MemberCounts
// lets callers distinguish "no ranked author belongs to these institutions"
// from "these institution IDs are unknown upstream" (all counts zero).
type FilterResult struct {
	// Authors is the retained subset of the input, relative order preserved.
	Authors []types.RankedAuthor

	// MemberCounts maps each requested institution ID to the size of its
	// membership set. An unknown institution contributes 0.
	MemberCounts map[string]int
}

// Filter restricts ranked author lists to institution members using a shared
// membership cache.
type Filter struct {
	cache *Cache
}

// NewFilter builds a Filter over a membership cache.
func NewFilter(cache *Cache) *Filter {
	return &Filter{cache: cache}
}

// Apply retains the ranked authors belonging to at least one of the requested
// institutions (union semantics), preserving relative order. An institution
// with no members contributes the empty set, not an error. With no requested
// institutions the input passes through unfiltered.
func (f *Filter) Apply(ctx context.Context, ranked []types.RankedAuthor, institutionIDs []string) (FilterResult, error) {
	result := FilterResult{MemberCounts: make(map[string]int, len(institutionIDs))}
	if len(institutionIDs) == 0 {
		result.Authors = ranked
		return result, nil
	}

	union := make(map[string]struct{})
	for _, id := range institutionIDs {
		members, err := f.cache.Members(ctx, id)
		if err != nil {
			return FilterResult{}, err
		}
		result.MemberCounts[id] = len(members)
		for authorID := range members {
			union[types.StripOAPrefix(authorID)] = struct{}{}
		}
	}

	result.Authors = make([]types.RankedAuthor, 0, len(ranked))
	for _, ra := range ranked {
		if _, ok := union[types.StripOAPrefix(ra.AuthorID)]; ok {
			result.Authors = append(result.Authors, ra)
		}
	}
	return result, nil
}
