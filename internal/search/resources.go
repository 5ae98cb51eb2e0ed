// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"sort"
	"strings"
)

// Resource describes one searchable resource type: which Milvus collection
// holds it and which entity fields come back with every hit.
type Resource struct {
	// Name is the resource type tag, matching the scoring config ("work").
	Name string `json:"name" yaml:"name"`

	// Collection is the Milvus collection searched for this resource type.
	Collection string `json:"collection" yaml:"collection"`

	// OutputFields are requested from Milvus with every hit. They must cover
	// every field the scoring formula references.
	OutputFields []string `json:"output_fields" yaml:"output_fields"`

	// YearField is the integer field used for since-year filtering; empty
	// disables the filter for this resource type.
	YearField string `json:"year_field,omitempty" yaml:"year_field,omitempty"`
}

// filterExpr builds the Milvus boolean filter for one request. Ignored
// records are always excluded; since-year and author scoping are appended
// when requested.
func (r Resource) filterExpr(opts Options) string {
	terms := []string{"ignore == false"}
	if opts.SinceYear > 0 && r.YearField != "" {
		terms = append(terms, fmt.Sprintf("%s >= %d", r.YearField, opts.SinceYear))
	}
	if opts.AuthorID != "" {
		terms = append(terms, fmt.Sprintf("ARRAY_CONTAINS(author_ids, %q)", opts.AuthorID))
	}
	return strings.Join(terms, " and ")
}

// WorkResource is the shipped registry entry for OpenAlex works.
func WorkResource() Resource {
	return Resource{
		Name:       "work",
		Collection: "works",
		OutputFields: []string{
			"author_ids", "cited_by_count", "publication_year",
			"title", "display_name", "doi", "type",
		},
		YearField: "publication_year",
	}
}

// validateFields checks that every identifier a formula references is served
// by the resource's output fields, the hit distance, or an evaluation-time
// constant. Run at startup so a bad formula fails before the first request.
func (r Resource) validateFields(identifiers []string) error {
	known := map[string]struct{}{"distance": {}, "current_year": {}}
	for _, f := range r.OutputFields {
		known[f] = struct{}{}
	}
	var missing []string
	for _, id := range identifiers {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("formula references fields not in resource %q output fields: %s",
			r.Name, strings.Join(missing, ", "))
	}
	return nil
}
