// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// SearchHit is one result of a vector similarity search for a resource type.
// Distance semantics depend on the collection metric: higher is better for
// inner product, lower is better for L2. Hits are immutable once received.
type SearchHit struct {
	// ID is the resource identifier (primary key in the collection).
	ID string `json:"id"`

	// Distance is the similarity score reported by the vector database.
	Distance float64 `json:"distance"`

	// Entity holds the requested output fields as decoded JSON values.
	Entity map[string]any `json:"entity"`
}

// AuthorIDs extracts the author_ids entity field. A hit without attributable
// authors returns nil.
func (h SearchHit) AuthorIDs() []string {
	raw, ok := h.Entity["author_ids"]
	if !ok || raw == nil {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		ids := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok && s != "" {
				ids = append(ids, s)
			}
		}
		return ids
	}
	return nil
}

// NumericFields returns the numeric entity fields plus the distance, keyed
// by field name. JSON numbers decode as float64; integer-typed values are
// included, text and boolean fields are not.
func (h SearchHit) NumericFields() map[string]float64 {
	fields := map[string]float64{"distance": h.Distance}
	for k, raw := range h.Entity {
		switch v := raw.(type) {
		case float64:
			fields[k] = v
		case int:
			fields[k] = float64(v)
		case int64:
			fields[k] = float64(v)
		}
	}
	return fields
}

// FlattenedRecord is a SearchHit expanded to exactly one author. Fields holds
// the hit's numeric fields by value (including "distance"); records flattened
// from the same hit share no mutable state.
type FlattenedRecord struct {
	AuthorID string
	Fields   map[string]float64
}

// Distance returns the record's similarity score.
func (r FlattenedRecord) Distance() float64 {
	return r.Fields["distance"]
}

// AuthorScores maps author_id to the aggregated score for one resource type.
type AuthorScores map[string]float64

// RankedAuthor is the final output unit of author search.
type RankedAuthor struct {
	// AuthorID is the OpenAlex author identifier.
	AuthorID string `json:"author_id" yaml:"author_id"`

	// Total is the sum of all per-resource scores.
	Total float64 `json:"total" yaml:"total"`

	// Scores maps resource type to that type's contribution. Every registered
	// resource type has an entry, zero when the author had no qualifying
	// records for it.
	Scores map[string]float64 `json:"scores" yaml:"scores"`
}
