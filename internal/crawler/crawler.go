// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package crawler pages works out of the OpenAlex API for one or more
// institutions and checkpoints them into the staging store, so an
// interrupted crawl resumes from its last cursor instead of restarting.
package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/expert-engine/internal/httputil"
	"github.com/pdiddy/expert-engine/pkg/types"
)

// openAlexBase is a variable so tests can point it at a local server.
var openAlexBase = "https://api.openalex.org"

// selectFields trims the works payload to the fields ParseWork keeps.
const selectFields = "id,doi,title,display_name,publication_year,publication_date," +
	"type,cited_by_count,is_retracted,is_paratext,primary_location,open_access," +
	"topics,authorships,abstract_inverted_index"

// Store is the staging surface the crawler checkpoints into.
type Store interface {
	SaveWorks(ctx context.Context, works []types.Work) error
	SaveCursor(ctx context.Context, institutionID, cursor string, worksSeen int) error
	Cursor(ctx context.Context, institutionID string) (string, int, error)
}

// Crawler pages OpenAlex works into the staging store.
type Crawler struct {
	client *http.Client
	cfg    types.CrawlConfig
	store  Store
}

// New returns a crawler using the given HTTP client and staging store.
func New(client *http.Client, cfg types.CrawlConfig, store Store) *Crawler {
	if cfg.PerPage <= 0 || cfg.PerPage > 200 {
		cfg.PerPage = 100
	}
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = 5000
	}
	return &Crawler{client: client, cfg: cfg, store: store}
}

// Summary holds counts from one crawl run.
type Summary struct {
	InstitutionID string
	Works         int
	Pages         int
	Resumed       bool
}

// LookupInstitution resolves an institution name to its OpenAlex ID and
// display name, taking the best search match.
func (c *Crawler) LookupInstitution(ctx context.Context, name string) (string, string, error) {
	q := url.Values{}
	q.Set("search", name)
	q.Set("per-page", "1")
	if c.cfg.Email != "" {
		q.Set("mailto", c.cfg.Email)
	}

	var parsed struct {
		Results []struct {
			ID          string `json:"id"`
			DisplayName string `json:"display_name"`
		} `json:"results"`
	}
	if err := c.get(ctx, "/institutions?"+q.Encode(), &parsed); err != nil {
		return "", "", fmt.Errorf("looking up institution %q: %w", name, err)
	}
	if len(parsed.Results) == 0 {
		return "", "", fmt.Errorf("no OpenAlex institution matches %q", name)
	}
	return types.StripOAPrefix(parsed.Results[0].ID), parsed.Results[0].DisplayName, nil
}

// Crawl pages every article-type work attributed to the institution into the
// staging store, checkpointing the cursor as it goes. A previously
// checkpointed crawl resumes from its cursor. Progress lines go to w.
func (c *Crawler) Crawl(ctx context.Context, institutionID string, w io.Writer) (Summary, error) {
	institutionID = types.StripOAPrefix(institutionID)
	summary := Summary{InstitutionID: institutionID}

	cursor, seen, err := c.store.Cursor(ctx, institutionID)
	if err != nil {
		return summary, err
	}
	if cursor == "" {
		cursor = "*"
	} else {
		summary.Resumed = true
		fmt.Fprintf(w, "resuming %s from %d works\n", institutionID, seen)
	}

	filter := fmt.Sprintf("authorships.institutions.lineage:%s,type:types/article", institutionID)

	var batch []types.Work
	sinceCheckpoint := 0
	for cursor != "" {
		page, nextCursor, err := c.fetchPage(ctx, filter, cursor)
		if err != nil {
			// Flush what we have so the checkpoint is not lost with the error.
			if flushErr := c.checkpoint(ctx, institutionID, batch, cursor, seen); flushErr == nil {
				batch = nil
			}
			return summary, fmt.Errorf("crawling %s: %w", institutionID, err)
		}
		if len(page) == 0 {
			break
		}

		batch = append(batch, page...)
		seen += len(page)
		sinceCheckpoint += len(page)
		summary.Works += len(page)
		summary.Pages++
		cursor = nextCursor

		if sinceCheckpoint >= c.cfg.CheckpointEvery {
			if err := c.checkpoint(ctx, institutionID, batch, cursor, seen); err != nil {
				return summary, err
			}
			fmt.Fprintf(w, "crawled %d works (%d pages)\n", seen, summary.Pages)
			batch = nil
			sinceCheckpoint = 0
		}
	}

	if err := c.checkpoint(ctx, institutionID, batch, "", seen); err != nil {
		return summary, err
	}
	fmt.Fprintf(w, "done: %d works from %s\n", seen, institutionID)
	return summary, nil
}

func (c *Crawler) checkpoint(ctx context.Context, institutionID string, batch []types.Work, cursor string, seen int) error {
	if err := c.store.SaveWorks(ctx, batch); err != nil {
		return fmt.Errorf("staging works: %w", err)
	}
	if err := c.store.SaveCursor(ctx, institutionID, cursor, seen); err != nil {
		return fmt.Errorf("checkpointing cursor: %w", err)
	}
	return nil
}

// fetchPage retrieves one works page and parses each record. A record that
// fails to parse is skipped rather than failing the page.
func (c *Crawler) fetchPage(ctx context.Context, filter, cursor string) ([]types.Work, string, error) {
	q := url.Values{}
	q.Set("filter", filter)
	q.Set("per-page", fmt.Sprintf("%d", c.cfg.PerPage))
	q.Set("cursor", cursor)
	q.Set("select", selectFields)
	if c.cfg.Email != "" {
		q.Set("mailto", c.cfg.Email)
	}

	var parsed struct {
		Meta struct {
			NextCursor string `json:"next_cursor"`
		} `json:"meta"`
		Results []json.RawMessage `json:"results"`
	}
	if err := c.get(ctx, "/works?"+q.Encode(), &parsed); err != nil {
		return nil, "", err
	}

	works := make([]types.Work, 0, len(parsed.Results))
	for _, raw := range parsed.Results {
		work, err := types.ParseWork(raw)
		if err != nil {
			continue
		}
		works = append(works, work)
	}
	return works, parsed.Meta.NextCursor, nil
}

func (c *Crawler) get(ctx context.Context, pathAndQuery string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimSuffix(openAlexBase, "/")+pathAndQuery, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, c.client, req, 3)
	if err != nil {
		return fmt.Errorf("calling OpenAlex: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("OpenAlex returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding OpenAlex response: %w", err)
	}
	return nil
}
