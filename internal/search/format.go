// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pdiddy/expert-engine/pkg/types"
)

// FormatAuthorsTable writes the ranked authors as a human-readable table.
func FormatAuthorsTable(result AuthorsResult, w io.Writer) {
	if len(result.Authors) == 0 {
		fmt.Fprintln(w, "No authors found.")
		return
	}

	resources := scoreColumns(result.Authors)
	fmt.Fprintf(w, "%-4s  %-24s  %-8s", "Rank", "Author", "Total")
	for _, res := range resources {
		fmt.Fprintf(w, "  %-8s", truncate(res, 8))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", 40+10*len(resources)))

	for i, a := range result.Authors {
		fmt.Fprintf(w, "%-4d  %-24s  %-8.3f", i+1, truncate(a.AuthorID, 24), a.Total)
		for _, res := range resources {
			fmt.Fprintf(w, "  %-8.3f", a.Scores[res])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\n%d authors", len(result.Authors))
	if len(result.Failed) > 0 {
		fmt.Fprintf(w, " (partial: %d resource types failed)", len(result.Failed))
	}
	fmt.Fprintln(w)

	for inst, n := range result.MemberCounts {
		if n == 0 {
			fmt.Fprintf(w, "warning: institution %s matched no authors; check the id\n", inst)
		}
	}
}

// FormatAuthorsJSON writes the full result as indented JSON.
func FormatAuthorsJSON(result AuthorsResult, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// FormatHitsTable writes raw resource hits as a human-readable table.
func FormatHitsTable(hits []types.SearchHit, w io.Writer) {
	if len(hits) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-8s  %-60s  %-4s  %s\n", "Rank", "Score", "Title", "Year", "Cited")
	fmt.Fprintln(w, strings.Repeat("-", 90))

	for i, h := range hits {
		title, _ := h.Entity["title"].(string)
		if title == "" {
			title, _ = h.Entity["display_name"].(string)
		}
		year := ""
		if y, ok := h.Entity["publication_year"].(float64); ok {
			year = fmt.Sprintf("%d", int(y))
		}
		cited := ""
		if c, ok := h.Entity["cited_by_count"].(float64); ok {
			cited = fmt.Sprintf("%d", int(c))
		}
		fmt.Fprintf(w, "%-4d  %-8.3f  %-60s  %-4s  %s\n",
			i+1, h.Distance, truncate(title, 60), year, cited)
	}

	fmt.Fprintf(w, "\n%d results\n", len(hits))
}

// FormatHitsJSON writes raw resource hits as indented JSON.
func FormatHitsJSON(hits []types.SearchHit, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(hits)
}

// scoreColumns returns the union of resource tags across authors, sorted.
func scoreColumns(authors []types.RankedAuthor) []string {
	set := make(map[string]struct{})
	for _, a := range authors {
		for res := range a.Scores {
			set[res] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for res := range set {
		out = append(out, res)
	}
	sort.Strings(out)
	return out
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
