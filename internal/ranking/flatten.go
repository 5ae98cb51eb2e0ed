// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ranking

import "github.com/pdiddy/expert-engine/pkg/types"

// Flatten expands each multi-author hit into one FlattenedRecord per author,
// preserving hit order. A hit without attributable authors cannot contribute
// to author ranking; it produces no records and is counted in skipped so the
// caller can log it.
func Flatten(hits []types.SearchHit) (records []types.FlattenedRecord, skipped int) {
	for _, hit := range hits {
		authorIDs := hit.AuthorIDs()
		if len(authorIDs) == 0 {
			skipped++
			continue
		}
		for _, authorID := range authorIDs {
			// Each record gets its own copy of the fields; flattened
			// records from one hit share no mutable state.
			fields := hit.NumericFields()
			records = append(records, types.FlattenedRecord{
				AuthorID: authorID,
				Fields:   fields,
			})
		}
	}
	return records, skipped
}
