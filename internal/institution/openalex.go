// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package institution

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pdiddy/expert-engine/internal/httputil"
	"github.com/pdiddy/expert-engine/pkg/types"
)

// openAlexAuthorsBase is the OpenAlex authors endpoint. Declared as a var so
// tests can substitute an httptest server.
var openAlexAuthorsBase = "https://api.openalex.org/authors"

// openAlexPerPage is the OpenAlex maximum page size.
const openAlexPerPage = 200

// OpenAlexSource lists institution members from the OpenAlex authors API by
// last known institution. This is the expensive path the cache fronts: one
// cursor-paginated walk over every author of the institution.
type OpenAlexSource struct {
	Client *http.Client

	// Email is sent as the mailto parameter for polite pool access.
	Email string

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string
}

// ListAuthorIDs walks the authors of an institution and returns their
// OpenAlex IDs (prefix-stripped, lowercased).
func (s *OpenAlexSource) ListAuthorIDs(ctx context.Context, institutionID string) (map[string]struct{}, error) {
	members := make(map[string]struct{})
	cursor := "*"

	for cursor != "" {
		params := url.Values{
			"filter":   {"last_known_institutions.id:" + institutionID},
			"select":   {"id"},
			"per-page": {fmt.Sprintf("%d", openAlexPerPage)},
			"cursor":   {cursor},
		}
		if s.Email != "" {
			params.Set("mailto", s.Email)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, openAlexAuthorsBase+"?"+params.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("User-Agent", s.UserAgent)

		resp, err := httputil.DoWithRetry(ctx, s.Client, req, 0)
		if err != nil {
			return nil, fmt.Errorf("OpenAlex authors request: %w", err)
		}

		var page openAlexAuthorsResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("OpenAlex authors API returned HTTP %d", resp.StatusCode)
		}
		if decodeErr != nil {
			return nil, fmt.Errorf("parsing OpenAlex authors response: %w", decodeErr)
		}

		for _, a := range page.Results {
			if a.ID != "" {
				members[types.StripOAPrefix(a.ID)] = struct{}{}
			}
		}
		if len(page.Results) == 0 {
			break
		}
		cursor = page.Meta.NextCursor
	}
	return members, nil
}

// OpenAlex authors API JSON structures.
type openAlexAuthorsResponse struct {
	Meta    openAlexMeta     `json:"meta"`
	Results []openAlexAuthor `json:"results"`
}

type openAlexMeta struct {
	Count      int    `json:"count"`
	NextCursor string `json:"next_cursor"`
}

type openAlexAuthor struct {
	ID string `json:"id"`
}
