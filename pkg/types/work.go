// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the expert-engine pipeline:
// crawled works, vector search hits, flattened per-author records, and ranked
// authors, plus the stage configuration structs.
package types

import (
	"fmt"
	"strings"
)

// Work is a bibliographic record crawled from OpenAlex and stored in the
// vector database. The abstract is reconstructed from the inverted index at
// parse time; the verbatim text is never stored upstream.
type Work struct {
	ID              string   `json:"id" yaml:"id"`
	DOI             string   `json:"doi,omitempty" yaml:"doi,omitempty"`
	Title           string   `json:"title,omitempty" yaml:"title,omitempty"`
	DisplayName     string   `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	PublicationYear int      `json:"publication_year,omitempty" yaml:"publication_year,omitempty"`
	PublicationDate string   `json:"publication_date,omitempty" yaml:"publication_date,omitempty"`
	Type            string   `json:"type,omitempty" yaml:"type,omitempty"`
	CitedByCount    int      `json:"cited_by_count" yaml:"cited_by_count"`
	IsRetracted     bool     `json:"is_retracted" yaml:"is_retracted"`
	IsParatext      bool     `json:"is_paratext" yaml:"is_paratext"`
	SourceID        string   `json:"source_id,omitempty" yaml:"source_id,omitempty"`
	SourceName      string   `json:"source_display_name,omitempty" yaml:"source_display_name,omitempty"`
	Topics          []string `json:"topics,omitempty" yaml:"topics,omitempty"`
	IsOA            bool     `json:"is_oa" yaml:"is_oa"`
	PDFURL          string   `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`
	LandingPageURL  string   `json:"landing_page_url,omitempty" yaml:"landing_page_url,omitempty"`
	Abstract        string   `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// AuthorIDs lists the OpenAlex author IDs in authorship order. Milvus has
	// no nested objects, so authors are denormalized onto the work.
	AuthorIDs []string `json:"author_ids" yaml:"author_ids"`

	// Ignore excludes the work from search without deleting it.
	Ignore bool `json:"ignore" yaml:"ignore"`
}

// EmbeddingText returns the text representation of the work used for
// document embeddings: title, journal, topics, and abstract.
func (w Work) EmbeddingText() string {
	var b strings.Builder
	if w.Title != "" {
		fmt.Fprintf(&b, "title: %s", w.Title)
	}
	if w.SourceName != "" {
		fmt.Fprintf(&b, "\njournal: %s", w.SourceName)
	}
	if len(w.Topics) > 0 {
		fmt.Fprintf(&b, "\ntopics: %s", strings.Join(w.Topics, ", "))
	}
	if w.Abstract != "" {
		fmt.Fprintf(&b, "\nabstract: %s", w.Abstract)
	}
	return b.String()
}

// Author is a person entity associated with works through authorships.
type Author struct {
	ID            string `json:"id" yaml:"id"`
	DisplayName   string `json:"display_name" yaml:"display_name"`
	ORCID         string `json:"orcid,omitempty" yaml:"orcid,omitempty"`
	InstitutionID string `json:"institution_id,omitempty" yaml:"institution_id,omitempty"`
}

// StripOAPrefix removes the "https://openalex.org/" prefix from an OpenAlex
// ID and lowercases the remainder, so "https://openalex.org/W123" and "w123"
// compare equal.
func StripOAPrefix(id string) string {
	return strings.ToLower(strings.TrimPrefix(id, "https://openalex.org/"))
}
