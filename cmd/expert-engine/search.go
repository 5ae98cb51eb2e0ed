// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/expert-engine/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Query the index for experts or resources",
	Long: `Search embeds a free-text query and runs it against the vector index.

"search authors" ranks authors: every resource type is searched, hits are
scored with the configured formula, and per-author scores are aggregated
across resource types. "search resource" returns the raw best-matching
records of one resource type.`,
}

var searchAuthorsCmd = &cobra.Command{
	Use:   "authors [query]",
	Short: "Rank authors for a free-text query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearchAuthors,
}

func runSearchAuthors(cmd *cobra.Command, args []string) error {
	engine, err := newEngine(pipelineConfig())
	if err != nil {
		return err
	}

	opts, err := searchOptions(cmd)
	if err != nil {
		return err
	}
	institutions, _ := cmd.Flags().GetStringSlice("institution")
	opts.Institutions = institutions

	result, err := engine.SearchAuthors(context.Background(), strings.Join(args, " "), opts, os.Stderr)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return search.FormatAuthorsJSON(result, os.Stdout)
	}
	search.FormatAuthorsTable(result, os.Stdout)
	return nil
}

var searchResourceCmd = &cobra.Command{
	Use:   "resource [query]",
	Short: "Return the best-matching records of one resource type",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearchResource,
}

func runSearchResource(cmd *cobra.Command, args []string) error {
	engine, err := newEngine(pipelineConfig())
	if err != nil {
		return err
	}

	opts, err := searchOptions(cmd)
	if err != nil {
		return err
	}
	if opts.TopK == 0 {
		opts.TopK = 3
	}
	resource, _ := cmd.Flags().GetString("type")

	hits, err := engine.SearchResource(context.Background(), resource, strings.Join(args, " "), opts)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return search.FormatHitsJSON(hits, os.Stdout)
	}
	search.FormatHitsTable(hits, os.Stdout)
	return nil
}

// searchOptions reads the flags the two search subcommands share.
func searchOptions(cmd *cobra.Command) (search.Options, error) {
	var opts search.Options
	opts.TopK, _ = cmd.Flags().GetInt("top-k")
	opts.SinceYear, _ = cmd.Flags().GetInt("since-year")
	opts.AuthorID, _ = cmd.Flags().GetString("author")

	if cmd.Flags().Changed("min-distance") {
		min, err := cmd.Flags().GetFloat64("min-distance")
		if err != nil {
			return opts, err
		}
		opts.MinDistance = &min
	}
	return opts, nil
}

func init() {
	for _, c := range []*cobra.Command{searchAuthorsCmd, searchResourceCmd} {
		c.Flags().Int("top-k", 0, "vector hits per resource type (0 = configured default)")
		c.Flags().Int("since-year", 0, "only consider works published in or after this year")
		c.Flags().String("author", "", "restrict to works by this OpenAlex author ID")
		c.Flags().Float64("min-distance", 0, "override the configured score threshold")
		c.Flags().Bool("json", false, "output results as JSON")
	}
	searchAuthorsCmd.Flags().StringSlice("institution", nil, "restrict authors to these OpenAlex institution IDs")
	searchResourceCmd.Flags().String("type", "work", "resource type to search")

	searchCmd.AddCommand(searchAuthorsCmd)
	searchCmd.AddCommand(searchResourceCmd)
	rootCmd.AddCommand(searchCmd)
}
