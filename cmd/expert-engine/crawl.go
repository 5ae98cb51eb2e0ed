// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/expert-engine/internal/crawler"
	"github.com/pdiddy/expert-engine/internal/staging"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl [institution...]",
	Short: "Crawl an institution's works from OpenAlex into staging",
	Long: `Crawl pages every article attributed to the given institutions out of
OpenAlex and checkpoints them into the local staging database. Institutions
may be given as OpenAlex IDs (I97018004) or as names, which are resolved via
institution search. An interrupted crawl resumes from its last checkpoint.

Run "expert-engine ingest" afterwards to embed and index the staged works.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCrawl,
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()

	store, err := staging.NewStore(cfg.Crawl.StagingDir)
	if err != nil {
		return err
	}
	defer store.Close()

	client := &http.Client{Timeout: cfg.Crawl.Timeout}
	c := crawler.New(client, cfg.Crawl, store)

	ctx := context.Background()
	for _, arg := range args {
		id := arg
		if !looksLikeInstitutionID(arg) {
			resolved, name, err := c.LookupInstitution(ctx, arg)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "resolved %q to %s (%s)\n", arg, resolved, name)
			id = resolved
		}

		if _, err := c.Crawl(ctx, id, os.Stdout); err != nil {
			return err
		}
	}

	sum, err := store.Counts(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "staging: %d works (%d pending ingest)\n", sum.Total, sum.Pending)
	return nil
}

// looksLikeInstitutionID reports whether the argument is an OpenAlex
// institution ID ("I97018004" or its URL form) rather than a name.
func looksLikeInstitutionID(s string) bool {
	if len(s) < 2 {
		return false
	}
	if s[0] != 'I' && s[0] != 'i' {
		if len(s) > len("https://openalex.org/") && s[:len("https://openalex.org/")] == "https://openalex.org/" {
			return looksLikeInstitutionID(s[len("https://openalex.org/"):])
		}
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func init() {
	rootCmd.AddCommand(crawlCmd)
}
