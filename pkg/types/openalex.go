// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"fmt"
)

// openAlexWork mirrors the subset of the OpenAlex work JSON the pipeline
// keeps. Everything else in the payload is dropped at parse time.
type openAlexWork struct {
	ID                    string           `json:"id"`
	DOI                   string           `json:"doi"`
	Title                 string           `json:"title"`
	DisplayName           string           `json:"display_name"`
	PublicationYear       int              `json:"publication_year"`
	PublicationDate       string           `json:"publication_date"`
	Type                  string           `json:"type"`
	CitedByCount          int              `json:"cited_by_count"`
	IsRetracted           bool             `json:"is_retracted"`
	IsParatext            bool             `json:"is_paratext"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`

	PrimaryLocation *struct {
		PDFURL         string `json:"pdf_url"`
		LandingPageURL string `json:"landing_page_url"`
		Source         *struct {
			ID          string `json:"id"`
			DisplayName string `json:"display_name"`
		} `json:"source"`
	} `json:"primary_location"`

	OpenAccess struct {
		IsOA bool `json:"is_oa"`
	} `json:"open_access"`

	Topics []struct {
		DisplayName string `json:"display_name"`
	} `json:"topics"`

	Authorships []struct {
		Author struct {
			ID string `json:"id"`
		} `json:"author"`
	} `json:"authorships"`
}

// ParseWork converts a raw OpenAlex work payload into a Work. OpenAlex URLs
// are normalized to bare lowercase IDs and the abstract is reconstructed from
// the inverted index; works never ship the verbatim text.
func ParseWork(data []byte) (Work, error) {
	var raw openAlexWork
	if err := json.Unmarshal(data, &raw); err != nil {
		return Work{}, fmt.Errorf("parsing OpenAlex work: %w", err)
	}
	if raw.ID == "" {
		return Work{}, fmt.Errorf("parsing OpenAlex work: missing id")
	}

	w := Work{
		ID:              StripOAPrefix(raw.ID),
		DOI:             raw.DOI,
		Title:           raw.Title,
		DisplayName:     raw.DisplayName,
		PublicationYear: raw.PublicationYear,
		PublicationDate: raw.PublicationDate,
		Type:            raw.Type,
		CitedByCount:    raw.CitedByCount,
		IsRetracted:     raw.IsRetracted,
		IsParatext:      raw.IsParatext,
		IsOA:            raw.OpenAccess.IsOA,
		Abstract:        ReconstructAbstract(raw.AbstractInvertedIndex),
	}

	if loc := raw.PrimaryLocation; loc != nil {
		w.PDFURL = loc.PDFURL
		w.LandingPageURL = loc.LandingPageURL
		if loc.Source != nil {
			w.SourceID = StripOAPrefix(loc.Source.ID)
			w.SourceName = loc.Source.DisplayName
		}
	}

	for _, t := range raw.Topics {
		if t.DisplayName != "" {
			w.Topics = append(w.Topics, t.DisplayName)
		}
	}

	for _, a := range raw.Authorships {
		if a.Author.ID != "" {
			w.AuthorIDs = append(w.AuthorIDs, StripOAPrefix(a.Author.ID))
		}
	}

	// Retracted works and paratext (covers, editorials) stay searchable only
	// when explicitly un-ignored later.
	w.Ignore = raw.IsRetracted || raw.IsParatext

	return w, nil
}
